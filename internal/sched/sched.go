// Package sched runs the pipeline's time-deferred work: detached one-shot
// jobs (auto-delete timers) and recurring maintenance jobs on cron specs.
package sched

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "vaultbot/pkg/logx"
)

type Service struct {
	log  logx.Logger
	cron *cron.Cron

	// pending counts outstanding one-shot jobs, observability only.
	pending atomic.Int64
	fired   atomic.Uint64
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:  log,
		cron: cron.New(),
	}
}

// After schedules fn once after d. The job is detached: no handle is
// retained and it cannot be canceled, matching the fire-and-forget
// contract of deferred deletions. Panics are contained.
func (s *Service) After(d time.Duration, name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("deferred job panicked",
					logx.String("name", name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())),
				)
			}
		}()
		if d > 0 {
			time.Sleep(d)
		}
		s.fired.Add(1)
		// Deliberately not tied to the app context: once scheduled, the job
		// always eventually fires (or dies with the process).
		fn(context.Background())
	}()
}

// Cron registers a recurring job on a standard 5-field cron spec.
func (s *Service) Cron(spec, name string, fn func(ctx context.Context)) error {
	if fn == nil {
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("cron job panicked",
					logx.String("name", name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())),
				)
			}
		}()
		fn(context.Background())
	})
	if err != nil {
		return fmt.Errorf("cron spec %q for %s: %w", spec, name, err)
	}
	s.log.Info("cron job registered", logx.String("name", name), logx.String("spec", spec))
	return nil
}

// Start begins dispatching cron jobs. One-shot jobs need no start.
func (s *Service) Start(context.Context) { s.cron.Start() }

// Stop halts the cron dispatcher and waits (bounded by ctx) for running
// cron jobs. Outstanding one-shot jobs keep running detached.
func (s *Service) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	if n := s.pending.Load(); n > 0 {
		s.log.Info("leaving deferred jobs to fire", logx.Int64("pending", n))
	}
}

// Pending reports outstanding one-shot jobs.
func (s *Service) Pending() int64 { return s.pending.Load() }

// Fired reports how many one-shot jobs have executed.
func (s *Service) Fired() uint64 { return s.fired.Load() }
