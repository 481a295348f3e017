package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/varsilias/whait/internal/completion"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/internal/realtime"
	"github.com/varsilias/whait/pkg/types"
)

// SoftFallbackReply is shown when no simulated reply could be generated.
const SoftFallbackReply = "Thanks for your message! I'll get back to you soon."

// State is a point-in-time copy of a View.
type State struct {
	Conversation types.Conversation `json:"conversation"`
	Input        string             `json:"input"`
	Loading      bool               `json:"loading"`
	// Typing is the display name of the participant currently typing, or "".
	Typing string `json:"typing,omitempty"`
}

// View is the live state of one open conversation: the message list as the user sees
// it, the draft input, and the typing indicator.
type View struct {
	deps *deps

	mu       sync.Mutex
	conv     types.Conversation
	messages []types.Message
	input    string
	loading  bool
	typing   string
}

func newView(d *deps, c types.Conversation) *View {
	return &View{
		deps:     d,
		conv:     c,
		messages: append([]types.Message{}, c.Messages...),
	}
}

func (v *View) ID() string { return v.conv.ID }

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	c := v.conv.Clone()
	c.Messages = append([]types.Message{}, v.messages...)
	return State{Conversation: c, Input: v.input, Loading: v.loading, Typing: v.typing}
}

// SetInput records the user's draft.
func (v *View) SetInput(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.input = s
}

// Send appends the message optimistically, persists the whole list and, on success,
// schedules the simulated reply. On a persistence failure the message is taken back
// out and the draft is restored.
func (v *View) Send(ctx context.Context, input string) (types.Message, error) {
	content := strings.TrimSpace(input)
	if content == "" {
		return types.Message{}, errs.ErrEmptyMessage
	}

	v.mu.Lock()
	history := slices.Clone(v.messages)
	msg := types.Message{
		ID:      uuid.NewString(),
		UserID:  v.deps.humanID,
		Content: content,
		Date:    v.nextDate(),
	}
	v.messages = append(slices.Clone(v.messages), msg)
	updated := slices.Clone(v.messages)
	v.input = ""
	v.loading = true
	v.mu.Unlock()

	if err := v.deps.store.UpdateMessages(ctx, v.conv.ID, updated, v.deps.now().UTC()); err != nil {
		v.deps.log.Error("send failed; reverting", "conversation_id", v.conv.ID, "err", err)
		v.mu.Lock()
		v.messages = slices.DeleteFunc(slices.Clone(v.messages), func(m types.Message) bool { return m.ID == msg.ID })
		v.input = content
		v.loading = false
		v.typing = ""
		v.mu.Unlock()
		v.deps.hub.Publish(realtime.Event{Type: realtime.MessageReverted, ConversationID: v.conv.ID, Message: &msg, Input: content})
		return types.Message{}, fmt.Errorf("%w: %w", errs.ErrPersist, err)
	}
	v.deps.hub.Publish(realtime.Event{Type: realtime.MessageAppended, ConversationID: v.conv.ID, Message: &msg})

	job := ReplyJob{ConversationID: v.conv.ID, Content: content, History: history}
	if err := v.deps.schedule(ctx, job); err != nil {
		v.deps.log.Error("schedule reply", "conversation_id", v.conv.ID, "err", err)
		v.setLoading(false)
	}
	return msg, nil
}

// Reply runs the delayed half of a send: typing indicator, completion, append, persist.
func (v *View) Reply(ctx context.Context, job ReplyJob) {
	defer v.setLoading(false)

	other, ok := v.otherParticipant()
	if !ok {
		return
	}

	name := v.deps.personalities.DisplayName(other)
	v.setTyping(name)
	v.deps.hub.Publish(realtime.Event{Type: realtime.TypingStarted, ConversationID: v.conv.ID, User: name})

	text := v.generate(ctx, other, job)

	v.setTyping("")
	v.deps.hub.Publish(realtime.Event{Type: realtime.TypingStopped, ConversationID: v.conv.ID, User: name})

	v.mu.Lock()
	reply := types.Message{
		ID:      uuid.NewString(),
		UserID:  other,
		Content: text,
		Date:    v.nextDate(),
	}
	v.messages = append(slices.Clone(v.messages), reply)
	updated := slices.Clone(v.messages)
	v.mu.Unlock()
	v.deps.hub.Publish(realtime.Event{Type: realtime.MessageAppended, ConversationID: v.conv.ID, Message: &reply})

	if err := v.deps.store.UpdateMessages(ctx, v.conv.ID, updated, v.deps.now().UTC()); err != nil {
		v.deps.log.Error("persist reply", "conversation_id", v.conv.ID, "err", err)
	}
}

func (v *View) generate(ctx context.Context, contact string, job ReplyJob) string {
	p, ok := v.deps.personalities.Lookup(contact)
	if !ok {
		return SoftFallbackReply
	}
	text, err := v.deps.replier.Reply(ctx, completion.Request{
		Message:             job.Content,
		Personality:         p.Prompt,
		ConversationHistory: job.History,
		CurrentUserID:       contact,
	})
	if err != nil {
		v.deps.log.Error("generate reply", "conversation_id", v.conv.ID, "contact", contact, "err", err)
		return SoftFallbackReply
	}
	if text == "" {
		return completion.FallbackReply
	}
	return text
}

// sync takes the stored messages as the base and keeps local messages not saved yet.
func (v *View) sync(stored types.Conversation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	saved := lo.SliceToMap(stored.Messages, func(m types.Message) (string, struct{}) { return m.ID, struct{}{} })
	pending := lo.Filter(v.messages, func(m types.Message, _ int) bool {
		_, ok := saved[m.ID]
		return !ok
	})
	v.conv.Title = stored.Title
	v.conv.Participants = slices.Clone(stored.Participants)
	v.messages = append(slices.Clone(stored.Messages), pending...)
}

func (v *View) otherParticipant() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.conv.Participants {
		if p != v.deps.humanID {
			return p, true
		}
	}
	return "", false
}

// nextDate never goes backwards relative to the last message. Caller holds mu.
func (v *View) nextDate() (t time.Time) {
	t = v.deps.now().UTC()
	if n := len(v.messages); n > 0 && v.messages[n-1].Date.After(t) {
		t = v.messages[n-1].Date
	}
	return t
}

func (v *View) setLoading(b bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = b
}

func (v *View) setTyping(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.typing = name
}
