// Package queue runs delayed background jobs, either in-process or on Redis via asynq.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed         = errors.New("queue: scheduler closed")
	ErrUnknownJobType = errors.New("queue: no handler registered")
)

// Job is a typed opaque payload. Encoding is up to callers.
type Job struct {
	Type    string
	Payload []byte
}

// Handler processes a job. Jobs are never retried, so the error is only logged.
type Handler func(ctx context.Context, job Job) error

type Scheduler interface {
	Register(jobType string, h Handler)
	// Schedule runs job once after delay.
	Schedule(ctx context.Context, job Job, delay time.Duration) error
	// Run blocks until ctx is canceled.
	Run(ctx context.Context) error
	Close() error
}
