package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const asynqQueue = "chat"

// AsynqScheduler enqueues jobs on Redis and consumes them in this process.
type AsynqScheduler struct {
	log    *slog.Logger
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
}

var _ Scheduler = (*AsynqScheduler)(nil)

// minDelayedCheck bounds how often asynq polls Redis for due delayed tasks.
const minDelayedCheck = 100 * time.Millisecond

// delayedCheckInterval keeps asynq's due-task polling at or below the shortest job delay.
func delayedCheckInterval(shortestDelay time.Duration) time.Duration {
	if shortestDelay < minDelayedCheck {
		return minDelayedCheck
	}
	return shortestDelay
}

// NewAsynqScheduler consumes from Redis in this process. shortestDelay is the smallest
// delay jobs will be scheduled with.
func NewAsynqScheduler(redisURL string, concurrency int, shortestDelay time.Duration, log *slog.Logger) (*AsynqScheduler, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: redis url is empty")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:              concurrency,
		Queues:                   map[string]int{asynqQueue: 1},
		DelayedTaskCheckInterval: delayedCheckInterval(shortestDelay),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("job failed", "type", task.Type(), "err", err)
		}),
	})
	return &AsynqScheduler{
		log:    log,
		client: asynq.NewClient(opt),
		server: srv,
		mux:    asynq.NewServeMux(),
	}, nil
}

func (s *AsynqScheduler) Register(jobType string, h Handler) {
	s.mux.HandleFunc(jobType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, Job{Type: t.Type(), Payload: t.Payload()})
	})
}

func (s *AsynqScheduler) Schedule(ctx context.Context, job Job, delay time.Duration) error {
	if job.Type == "" {
		return errors.New("asynq: job type is required")
	}
	info, err := s.client.EnqueueContext(ctx, asynq.NewTask(job.Type, job.Payload),
		asynq.Queue(asynqQueue),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return err
	}
	s.log.Debug("job enqueued", "type", job.Type, "id", info.ID, "delay", delay.String())
	return nil
}

func (s *AsynqScheduler) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

func (s *AsynqScheduler) Close() error {
	return s.client.Close()
}
