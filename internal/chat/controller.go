// Package chat holds the conversation list and the live per-conversation views.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/varsilias/whait/internal/completion"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/internal/personality"
	"github.com/varsilias/whait/internal/queue"
	"github.com/varsilias/whait/internal/realtime"
	"github.com/varsilias/whait/internal/store"
	"github.com/varsilias/whait/pkg/types"
)

// ReplyJobType is the queue job type of a delayed simulated reply.
const ReplyJobType = "chat:reply"

// Replier produces a contact's next message. *completion.Service satisfies it.
type Replier interface {
	Reply(ctx context.Context, req completion.Request) (string, error)
}

// ReplyJob is the queue payload scheduled after a successful send.
type ReplyJob struct {
	ConversationID string          `json:"conversation_id"`
	Content        string          `json:"content"`
	History        []types.Message `json:"history"`
}

type Options struct {
	HumanID    string
	ReplyDelay time.Duration
	// Now is for tests.
	Now func() time.Time
}

type deps struct {
	log           *slog.Logger
	store         store.Store
	hub           realtime.Publisher
	replier       Replier
	personalities *personality.Registry
	humanID       string
	now           func() time.Time
	schedule      func(ctx context.Context, job ReplyJob) error
}

type Controller struct {
	log   *slog.Logger
	deps  *deps
	sched queue.Scheduler
	delay time.Duration

	mu    sync.Mutex
	views map[string]*View
}

func NewController(log *slog.Logger, s store.Store, hub realtime.Publisher, sched queue.Scheduler,
	replier Replier, reg *personality.Registry, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{
		log:   log,
		sched: sched,
		delay: opts.ReplyDelay,
		views: make(map[string]*View),
	}
	c.deps = &deps{
		log:           log,
		store:         s,
		hub:           hub,
		replier:       replier,
		personalities: reg,
		humanID:       opts.HumanID,
		now:           opts.Now,
		schedule:      c.scheduleReply,
	}
	sched.Register(ReplyJobType, c.handleReply)
	return c
}

func (c *Controller) HumanID() string { return c.deps.humanID }

// Open returns the live view of a conversation, loading it from the store the first
// time. Unknown ids wrap errs.ErrNotFound.
func (c *Controller) Open(ctx context.Context, id string) (*View, error) {
	c.mu.Lock()
	v, ok := c.views[id]
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	conv, err := c.deps.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open conversation %s: %w", id, err)
	}
	v, _ = c.viewFor(conv)
	return v, nil
}

// viewFor returns the registered view of conv, creating it from conv if there is none.
func (c *Controller) viewFor(conv types.Conversation) (*View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.views[conv.ID]; ok {
		return v, true
	}
	v := newView(c.deps, conv)
	c.views[conv.ID] = v
	return v, false
}

func (c *Controller) Send(ctx context.Context, id, input string) (types.Message, error) {
	v, err := c.Open(ctx, id)
	if err != nil {
		return types.Message{}, err
	}
	return v.Send(ctx, input)
}

// Create stores a new conversation. The current user is always a participant.
func (c *Controller) Create(ctx context.Context, title string, participants []string) (types.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.Conversation{}, fmt.Errorf("%w: title is required", errs.ErrValidation)
	}
	participants = lo.Uniq(lo.Compact(append([]string{c.deps.humanID}, participants...)))
	if len(participants) < 2 {
		return types.Conversation{}, fmt.Errorf("%w: at least one other participant is required", errs.ErrValidation)
	}
	now := c.deps.now().UTC()
	conv, err := c.deps.store.Create(ctx, types.Conversation{
		Title:        title,
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return types.Conversation{}, err
	}
	c.log.Info("conversation created", "conversation_id", conv.ID, "participants", len(participants))
	return conv, nil
}

func (c *Controller) scheduleReply(ctx context.Context, job ReplyJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.sched.Schedule(ctx, queue.Job{Type: ReplyJobType, Payload: payload}, c.delay)
}

func (c *Controller) handleReply(ctx context.Context, job queue.Job) error {
	var rj ReplyJob
	if err := json.Unmarshal(job.Payload, &rj); err != nil {
		return fmt.Errorf("decode reply job: %w", err)
	}
	// The job may run in another process whose view is behind the store.
	conv, err := c.deps.store.Get(ctx, rj.ConversationID)
	if err != nil {
		return fmt.Errorf("reply to %s: %w", rj.ConversationID, err)
	}
	v, existed := c.viewFor(conv)
	if existed {
		v.sync(conv)
	}
	v.Reply(ctx, rj)
	return nil
}
