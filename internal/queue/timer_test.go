package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerScheduler_Runs_After_Delay(t *testing.T) {
	req := require.New(t)
	s := NewTimerScheduler(slog.Default(), time.Second)
	done := make(chan Job, 1)
	s.Register("reply", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	})

	start := time.Now()
	req.NoError(s.Schedule(context.Background(), Job{Type: "reply", Payload: []byte("x")}, 20*time.Millisecond))

	select {
	case job := <-done:
		req.Equal("x", string(job.Payload))
		req.GreaterOrEqual(time.Since(start), 20*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	req.NoError(s.Close())
}

func TestTimerScheduler_Unknown_Type(t *testing.T) {
	s := NewTimerScheduler(slog.Default(), 0)
	err := s.Schedule(context.Background(), Job{Type: "nope"}, 0)
	require.ErrorIs(t, err, ErrUnknownJobType)
}

func TestTimerScheduler_Close_Drops_Pending_And_Rejects_New(t *testing.T) {
	req := require.New(t)
	s := NewTimerScheduler(slog.Default(), 0)
	var ran atomic.Int32
	s.Register("reply", func(ctx context.Context, job Job) error {
		ran.Add(1)
		return errors.New("logged only")
	})

	req.NoError(s.Schedule(context.Background(), Job{Type: "reply"}, time.Hour))
	req.NoError(s.Schedule(context.Background(), Job{Type: "reply"}, 0))
	time.Sleep(50 * time.Millisecond)
	req.NoError(s.Close())

	req.EqualValues(1, ran.Load())
	req.ErrorIs(s.Schedule(context.Background(), Job{Type: "reply"}, 0), ErrClosed)
}
