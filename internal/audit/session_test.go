package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthlens/backend/internal/governance"
)

// blockingRunner holds each run until release is closed or ctx ends.
type blockingRunner struct {
	release chan struct{}
	report  *governance.AuditReport
	err     error
}

func (b *blockingRunner) Run(ctx context.Context, _ Request) (*governance.AuditReport, error) {
	select {
	case <-b.release:
		return b.report, b.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func startAsync(s *Session) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := s.Start(context.Background(), Request{})
		done <- err
	}()
	return done
}

func waitFor(t *testing.T, s *Session, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, time.Second, 5*time.Millisecond)
}

func TestSessionLifecycle(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), report: &governance.AuditReport{ID: "r1"}}
	s := NewSession(runner)
	assert.Equal(t, StateIdle, s.State())

	done := startAsync(s)
	waitFor(t, s, StateAnalyzing)

	_, err := s.Start(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrAuditInProgress)

	close(runner.release)
	require.NoError(t, <-done)

	assert.Equal(t, StateResults, s.State())
	require.NotNil(t, s.Report())
	assert.Equal(t, "r1", s.Report().ID)

	s.Reset()
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Report())
}

func TestSessionError(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), err: errors.New("boom")}
	close(runner.release)
	s := NewSession(runner)

	_, err := s.Start(context.Background(), Request{})
	require.Error(t, err)

	assert.Equal(t, StateError, s.State())
	assert.EqualError(t, s.Err(), "boom")

	s.Reset()
	assert.Equal(t, StateIdle, s.State())
	assert.NoError(t, s.Err())
}

func TestSessionResetAbandonsRun(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	s := NewSession(runner)

	done := startAsync(s)
	waitFor(t, s, StateAnalyzing)

	s.Reset()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Report())
}

type countingRunner struct {
	calls int
}

func (c *countingRunner) Run(context.Context, Request) (*governance.AuditReport, error) {
	c.calls++
	return &governance.AuditReport{ID: "late"}, nil
}

func TestSessionResetBeforeRunSkipsAudit(t *testing.T) {
	runner := &countingRunner{}
	s := NewSession(runner)

	run, err := s.Begin(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, StateAnalyzing, s.State())

	_, err = s.Begin(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrAuditInProgress)

	s.Reset()
	report, err := run()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Zero(t, runner.calls)
	assert.Equal(t, StateIdle, s.State())
}
