package chat_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/varsilias/whait/internal/chat"
	"github.com/varsilias/whait/internal/completion"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/internal/mocks"
	"github.com/varsilias/whait/internal/personality"
	"github.com/varsilias/whait/internal/queue"
	"github.com/varsilias/whait/internal/realtime"
	"github.com/varsilias/whait/internal/store"
	"github.com/varsilias/whait/pkg/types"
	"go.uber.org/mock/gomock"
)

const human = "current-user"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// manualScheduler keeps jobs until the test runs them.
type manualScheduler struct {
	handlers map[string]queue.Handler
	jobs     []queue.Job
	delays   []time.Duration
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{handlers: map[string]queue.Handler{}}
}

func (s *manualScheduler) Register(t string, h queue.Handler) { s.handlers[t] = h }
func (s *manualScheduler) Schedule(_ context.Context, j queue.Job, d time.Duration) error {
	s.jobs = append(s.jobs, j)
	s.delays = append(s.delays, d)
	return nil
}
func (s *manualScheduler) Run(context.Context) error { return nil }
func (s *manualScheduler) Close() error              { return nil }

func (s *manualScheduler) runAll(t *testing.T) {
	t.Helper()
	jobs := s.jobs
	s.jobs = nil
	for _, j := range jobs {
		require.NoError(t, s.handlers[j.Type](context.Background(), j))
	}
}

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Publish(e realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []realtime.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type stubReplier struct {
	text string
	err  error
	got  []completion.Request
}

func (s *stubReplier) Reply(_ context.Context, req completion.Request) (string, error) {
	s.got = append(s.got, req)
	return s.text, s.err
}

type fixture struct {
	ctrl    *chat.Controller
	store   store.Store
	sched   *manualScheduler
	hub     *recorder
	replier *stubReplier
	conv    types.Conversation
}

func newFixture(t *testing.T, s store.Store) *fixture {
	t.Helper()
	reg, err := personality.Load("")
	require.NoError(t, err)
	f := &fixture{
		store:   s,
		sched:   newManualScheduler(),
		hub:     &recorder{},
		replier: &stubReplier{text: "sounds great"},
	}
	f.ctrl = chat.NewController(discard, s, f.hub, f.sched, f.replier, reg, chat.Options{
		HumanID:    human,
		ReplyDelay: 800 * time.Millisecond,
	})
	return f
}

func seeded(t *testing.T, participants ...string) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	f := newFixture(t, s)
	conv, err := s.Create(context.Background(), types.Conversation{
		Title:        "Chat with Sarah",
		Participants: participants,
		Messages: []types.Message{{
			ID: "m0", UserID: "sarah-wilson", Content: "hi", Date: time.Now().Add(time.Hour).UTC(),
		}},
	})
	require.NoError(t, err)
	f.conv = conv
	return f
}

func TestView_Send_Appends_And_Schedules_Reply(t *testing.T) {
	req := require.New(t)
	f := seeded(t, human, "sarah-wilson")
	ctx := context.Background()

	v, err := f.ctrl.Open(ctx, f.conv.ID)
	req.NoError(err)
	v.SetInput("  hello there ")

	msg, err := v.Send(ctx, "  hello there ")
	req.NoError(err)
	req.NotEmpty(msg.ID)
	req.NotEqual("m0", msg.ID)
	req.Equal(human, msg.UserID)
	req.Equal("hello there", msg.Content)
	req.False(msg.Date.Before(f.conv.Messages[0].Date))

	st := v.State()
	req.Empty(st.Input)
	req.True(st.Loading)
	req.Len(st.Conversation.Messages, 2)

	stored, err := f.store.Get(ctx, f.conv.ID)
	req.NoError(err)
	req.Len(stored.Messages, 2)

	req.Len(f.sched.jobs, 1)
	req.Equal(chat.ReplyJobType, f.sched.jobs[0].Type)
	req.Equal(800*time.Millisecond, f.sched.delays[0])
	req.Equal([]realtime.EventType{realtime.MessageAppended}, f.hub.kinds())
}

func TestView_Send_Empty_Input(t *testing.T) {
	req := require.New(t)
	f := seeded(t, human, "sarah-wilson")

	_, err := f.ctrl.Send(context.Background(), f.conv.ID, "   ")
	req.ErrorIs(err, errs.ErrEmptyMessage)
	req.Empty(f.sched.jobs)
}

func TestView_Send_Unknown_Conversation(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	_, err := f.ctrl.Send(context.Background(), "nope", "hi")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestView_Reply_Flow(t *testing.T) {
	req := require.New(t)
	f := seeded(t, human, "sarah-wilson")
	ctx := context.Background()

	_, err := f.ctrl.Send(ctx, f.conv.ID, "how are you?")
	req.NoError(err)
	f.sched.runAll(t)

	req.Len(f.replier.got, 1)
	got := f.replier.got[0]
	req.Equal("how are you?", got.Message)
	req.Contains(got.Personality, "professional")
	req.Len(got.ConversationHistory, 1, "history excludes the new message")

	v, err := f.ctrl.Open(ctx, f.conv.ID)
	req.NoError(err)
	st := v.State()
	req.False(st.Loading)
	req.Empty(st.Typing)
	req.Len(st.Conversation.Messages, 3)
	last := st.Conversation.Messages[2]
	req.Equal("sarah-wilson", last.UserID)
	req.Equal("sounds great", last.Content)
	req.False(last.Date.Before(st.Conversation.Messages[1].Date))

	stored, err := f.store.Get(ctx, f.conv.ID)
	req.NoError(err)
	req.Len(stored.Messages, 3)

	req.Equal([]realtime.EventType{
		realtime.MessageAppended,
		realtime.TypingStarted,
		realtime.TypingStopped,
		realtime.MessageAppended,
	}, f.hub.kinds())
	req.Equal("Sarah", f.hub.events[1].User)
}

func TestView_Reply_Falls_Back_On_Error(t *testing.T) {
	req := require.New(t)
	f := seeded(t, human, "sarah-wilson")
	f.replier.err = errors.New("boom")

	_, err := f.ctrl.Send(context.Background(), f.conv.ID, "ping")
	req.NoError(err)
	f.sched.runAll(t)

	v, _ := f.ctrl.Open(context.Background(), f.conv.ID)
	msgs := v.State().Conversation.Messages
	req.Equal(chat.SoftFallbackReply, msgs[len(msgs)-1].Content)
}

func TestView_Reply_Unknown_Personality_Uses_Raw_Id(t *testing.T) {
	req := require.New(t)
	f := seeded(t, human, "stranger")

	_, err := f.ctrl.Send(context.Background(), f.conv.ID, "ping")
	req.NoError(err)
	f.sched.runAll(t)

	req.Empty(f.replier.got)
	req.Equal("stranger", f.hub.events[1].User)
	v, _ := f.ctrl.Open(context.Background(), f.conv.ID)
	msgs := v.State().Conversation.Messages
	req.Equal(chat.SoftFallbackReply, msgs[len(msgs)-1].Content)
}

func TestView_Reply_Without_Other_Participant(t *testing.T) {
	req := require.New(t)
	f := seeded(t, human)

	_, err := f.ctrl.Send(context.Background(), f.conv.ID, "note to self")
	req.NoError(err)
	f.sched.runAll(t)

	v, _ := f.ctrl.Open(context.Background(), f.conv.ID)
	st := v.State()
	req.False(st.Loading)
	req.Len(st.Conversation.Messages, 2)
	req.Empty(f.replier.got)
}

func TestView_Send_Reverts_On_Persist_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockStore(ctrl)

	conv := types.Conversation{
		ID:           "c1",
		Title:        "Chat with Mike",
		Participants: []string{human, "mike-brown"},
		Messages:     []types.Message{{ID: "m0", UserID: "mike-brown", Content: "yo", Date: time.Now().UTC()}},
	}
	ms.EXPECT().Get(gomock.Any(), "c1").Return(conv, nil)
	ms.EXPECT().UpdateMessages(gomock.Any(), "c1", gomock.Len(2), gomock.Any()).Return(errors.New("db down"))

	f := newFixture(t, ms)
	v, err := f.ctrl.Open(context.Background(), "c1")
	req.NoError(err)

	_, err = v.Send(context.Background(), "  are you there? ")
	req.ErrorIs(err, errs.ErrPersist)

	st := v.State()
	req.Equal(conv.Messages, st.Conversation.Messages)
	req.Equal("are you there?", st.Input)
	req.False(st.Loading)
	req.Empty(st.Typing)
	req.Empty(f.sched.jobs)
	req.Equal([]realtime.EventType{realtime.MessageReverted}, f.hub.kinds())
	req.Equal("are you there?", f.hub.events[0].Input)
}

func TestController_Create(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()

	c, err := f.ctrl.Create(ctx, " Chat with Emma ", []string{"emma-davis", human, ""})
	req.NoError(err)
	req.NotEmpty(c.ID)
	req.Equal("Chat with Emma", c.Title)
	req.Equal([]string{human, "emma-davis"}, c.Participants)

	_, err = f.ctrl.Create(ctx, "", []string{"emma-davis"})
	req.ErrorIs(err, errs.ErrValidation)
	_, err = f.ctrl.Create(ctx, "alone", nil)
	req.ErrorIs(err, errs.ErrValidation)
}

func TestController_Reply_From_Stale_View_Keeps_Saved_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := seeded(t, human, "sarah-wilson")

	// a second process sharing the store, with a view opened before the send
	reg, err := personality.Load("")
	req.NoError(err)
	otherSched := newManualScheduler()
	other := chat.NewController(discard, f.store, &recorder{}, otherSched, f.replier, reg, chat.Options{HumanID: human})
	stale, err := other.Open(ctx, f.conv.ID)
	req.NoError(err)
	req.Len(stale.State().Conversation.Messages, 1)

	sent, err := f.ctrl.Send(ctx, f.conv.ID, "are we still on?")
	req.NoError(err)
	req.Len(f.sched.jobs, 1)

	req.NoError(otherSched.handlers[chat.ReplyJobType](ctx, f.sched.jobs[0]))

	stored, err := f.store.Get(ctx, f.conv.ID)
	req.NoError(err)
	req.Len(stored.Messages, 3)
	req.Equal("m0", stored.Messages[0].ID)
	req.Equal(sent.ID, stored.Messages[1].ID)
	req.Equal("sarah-wilson", stored.Messages[2].UserID)
	req.Equal(stored.Messages, stale.State().Conversation.Messages)
}
