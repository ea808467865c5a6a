package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errRefused = errors.New("connection refused")

type fakeServer struct {
	probes   int
	starts   int
	upAfter  int
	startErr error
}

func (f *fakeServer) probe(context.Context) error {
	f.probes++
	if f.upAfter >= 0 && f.probes > f.upAfter {
		return nil
	}
	return errRefused
}

func (f *fakeServer) start() error {
	f.starts++
	return f.startErr
}

func newTestSupervisor(f *fakeServer, cfg SupervisorConfig) *Supervisor {
	if cfg.ReadyBackoff == 0 {
		cfg.ReadyBackoff = time.Millisecond
	}
	s := NewSupervisor(cfg)
	s.probe = f.probe
	s.start = f.start
	return s
}

func TestEnsureReadyAlreadyRunning(t *testing.T) {
	f := &fakeServer{upAfter: 0}
	var transitions []State
	s := newTestSupervisor(f, SupervisorConfig{
		StartCommand:  []string{"ollama", "serve"},
		OnStateChange: func(_ State, to State) { transitions = append(transitions, to) },
	})

	assert.True(t, s.EnsureReady(context.Background()))
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, 0, f.starts)
	assert.Equal(t, []State{StateChecking, StateReady}, transitions)
}

func TestEnsureReadyStartsServer(t *testing.T) {
	f := &fakeServer{upAfter: 3}
	s := newTestSupervisor(f, SupervisorConfig{
		StartCommand:  []string{"ollama", "serve"},
		ReadyAttempts: 5,
	})

	assert.True(t, s.EnsureReady(context.Background()))
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, 1, f.starts)
	assert.Equal(t, 4, f.probes)
}

func TestEnsureReadyGivesUpAfterAttempts(t *testing.T) {
	f := &fakeServer{upAfter: -1}
	s := newTestSupervisor(f, SupervisorConfig{
		StartCommand:  []string{"ollama", "serve"},
		ReadyAttempts: 3,
	})

	assert.False(t, s.EnsureReady(context.Background()))
	assert.Equal(t, StateUnreachable, s.State())
	assert.Equal(t, 1, f.starts)
	assert.Equal(t, 4, f.probes)
}

func TestEnsureReadyWithoutStartCommand(t *testing.T) {
	f := &fakeServer{upAfter: -1}
	s := newTestSupervisor(f, SupervisorConfig{})

	assert.False(t, s.EnsureReady(context.Background()))
	assert.Equal(t, StateUnreachable, s.State())
	assert.Equal(t, 0, f.starts)
}

func TestEnsureReadyLaunchesOnlyOnce(t *testing.T) {
	f := &fakeServer{upAfter: -1}
	s := newTestSupervisor(f, SupervisorConfig{
		StartCommand:  []string{"ollama", "serve"},
		ReadyAttempts: 2,
	})

	assert.False(t, s.EnsureReady(context.Background()))
	assert.False(t, s.EnsureReady(context.Background()))
	assert.False(t, s.EnsureReady(context.Background()))

	assert.Equal(t, 1, f.starts)
	assert.Equal(t, 9, f.probes)
}

func TestEnsureReadyRetriesStartAfterFailure(t *testing.T) {
	f := &fakeServer{upAfter: -1, startErr: errors.New("not found")}
	s := newTestSupervisor(f, SupervisorConfig{StartCommand: []string{"missing-binary"}})

	assert.False(t, s.EnsureReady(context.Background()))
	assert.False(t, s.EnsureReady(context.Background()))
	assert.Equal(t, 2, f.starts)
}

func TestEnsureReadyStartFailure(t *testing.T) {
	f := &fakeServer{upAfter: -1, startErr: errors.New("not found")}
	s := newTestSupervisor(f, SupervisorConfig{StartCommand: []string{"missing-binary"}})

	assert.False(t, s.EnsureReady(context.Background()))
	assert.Equal(t, StateUnreachable, s.State())
	assert.Equal(t, 1, f.probes)
}

func TestEnsureReadyReusesVerdictWithinInterval(t *testing.T) {
	up := &fakeServer{upAfter: 0}
	s := newTestSupervisor(up, SupervisorConfig{ProbeInterval: time.Hour})

	assert.True(t, s.EnsureReady(context.Background()))
	assert.True(t, s.EnsureReady(context.Background()))
	assert.Equal(t, 1, up.probes)

	down := &fakeServer{upAfter: -1}
	s = newTestSupervisor(down, SupervisorConfig{ProbeInterval: time.Hour})

	assert.False(t, s.EnsureReady(context.Background()))
	assert.False(t, s.EnsureReady(context.Background()))
	assert.Equal(t, 1, down.probes)
}

func TestInvalidateForcesProbe(t *testing.T) {
	f := &fakeServer{upAfter: 0}
	s := newTestSupervisor(f, SupervisorConfig{ProbeInterval: time.Hour})

	assert.True(t, s.EnsureReady(context.Background()))
	s.Invalidate()
	assert.Equal(t, StateUnknown, s.State())

	assert.True(t, s.EnsureReady(context.Background()))
	assert.Equal(t, 2, f.probes)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "unreachable", StateUnreachable.String())
}
