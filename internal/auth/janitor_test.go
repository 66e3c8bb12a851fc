package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	calls  atomic.Int32
	n      int64
	err    error
	panics bool
}

func (s *stubSweeper) CleanupExpiredSessions(context.Context) (int64, error) {
	s.calls.Add(1)
	if s.panics {
		panic("sweeper exploded")
	}
	return s.n, s.err
}

func TestJanitorSweepLogsOutcome(t *testing.T) {
	log, hook := test.NewNullLogger()

	ok := &stubSweeper{n: 3}
	j, err := NewJanitor(ok, "", log)
	require.NoError(t, err)
	assert.Equal(t, int64(3), j.Sweep(context.Background()))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, int64(3), hook.LastEntry().Data["deleted"])

	hook.Reset()
	failing := &stubSweeper{err: errors.New("db down")}
	j, err = NewJanitor(failing, DefaultSweepSchedule, log)
	require.NoError(t, err)
	assert.Equal(t, int64(0), j.Sweep(context.Background()))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	_, err := NewJanitor(&stubSweeper{}, "every now and then", nil)
	assert.Error(t, err)
}

func TestJanitorRunsOnSchedule(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := &stubSweeper{}
	j, err := NewJanitor(s, "@every 1s", log)
	require.NoError(t, err)

	j.Start()
	j.Start()
	assert.Eventually(t, func() bool { return s.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, j.Stop(ctx))
	require.NoError(t, j.Stop(ctx))
}

func TestJanitorSurvivesPanickingSweep(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := &stubSweeper{panics: true}
	j, err := NewJanitor(s, "@every 1s", log)
	require.NoError(t, err)

	j.Start()
	assert.Eventually(t, func() bool { return s.calls.Load() >= 2 }, 5*time.Second, 50*time.Millisecond,
		"schedule keeps firing after a sweep panics")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, j.Stop(ctx))
}
