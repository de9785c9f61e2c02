package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/directory"
	"github.com/vedran77/dmcore/internal/repository/memory"
)

func TestScheduler_RejectsBadExpression(t *testing.T) {
	s := NewScheduler(NewDigest(memory.New().Messages(), directory.NewStatic(), nil, 1, zap.NewNop()), zap.NewNop())
	assert.Error(t, s.Schedule("not a cron line"))
	assert.Error(t, s.Schedule("* * * * * *"))
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(NewDigest(memory.New().Messages(), directory.NewStatic(), nil, 1, zap.NewNop()), zap.NewNop())
	require.NoError(t, s.Schedule("0 8 * * *"))
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Stop(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.ErrorIs(t, s.ctx.Err(), context.Canceled)
}
