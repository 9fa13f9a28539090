package runner_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jadehq/jade/pkg/runner"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type probeService struct {
	name      string
	startErr  error
	healthErr error
	log       *callLog
}

func (s *probeService) Name() string { return s.name }

func (s *probeService) Start(context.Context) error {
	s.log.add("start " + s.name)
	return s.startErr
}

func (s *probeService) Stop(context.Context) error {
	s.log.add("stop " + s.name)
	return nil
}

func (s *probeService) HealthCheck(context.Context) error {
	return s.healthErr
}

func TestRunnerStartsInOrderAndStopsAll(t *testing.T) {
	log := &callLog{}
	a := &probeService{name: "a", log: log}
	b := &probeService{name: "b", log: log}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	r := runner.New([]runner.Service{a, b}, runner.WithShutdownTimeout(time.Second))
	if err := r.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	calls := log.snapshot()
	if len(calls) != 4 {
		t.Fatalf("calls = %v", calls)
	}
	// Startup order is registration order; stops run in parallel.
	if calls[0] != "start a" || calls[1] != "start b" {
		t.Errorf("start order = %v", calls[:2])
	}
	joined := strings.Join(calls[2:], ",")
	if !strings.Contains(joined, "stop a") || !strings.Contains(joined, "stop b") {
		t.Errorf("stops = %v", calls[2:])
	}
}

func TestRunnerFailedStartStopsStartedServices(t *testing.T) {
	log := &callLog{}
	a := &probeService{name: "a", log: log}
	b := &probeService{name: "b", log: log, startErr: errors.New("port in use")}

	err := runner.New([]runner.Service{a, b}, runner.WithShutdownTimeout(time.Second)).
		Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "start service b") {
		t.Fatalf("got %v", err)
	}

	calls := log.snapshot()
	var stoppedA bool
	for _, call := range calls {
		if call == "stop a" {
			stoppedA = true
		}
		if call == "stop b" {
			t.Errorf("service b never started but was stopped")
		}
	}
	if !stoppedA {
		t.Errorf("service a not stopped after failed startup, calls = %v", calls)
	}
}

func TestRunnerHealthCheck(t *testing.T) {
	log := &callLog{}
	healthy := &probeService{name: "a", log: log}
	r := runner.New([]runner.Service{healthy})
	if err := r.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	sick := &probeService{name: "b", log: log, healthErr: errors.New("connection refused")}
	r = runner.New([]runner.Service{healthy, sick})
	err := r.HealthCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "service b unhealthy") {
		t.Fatalf("got %v", err)
	}
}
