// Package broadcast fans a stored message out to every known user,
// sequentially and under a rate limit.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"vaultbot/internal/metrics"
	"vaultbot/internal/transport"
	"vaultbot/pkg/logx"
)

const (
	// DefaultRate is the send ceiling in messages per second.
	DefaultRate  = 10
	defaultBurst = 1
)

// Sender is the slice of the chat adapter a fan-out needs.
type Sender interface {
	Copy(ctx context.Context, to transport.ChatTarget, src transport.MessageRef, opt *transport.SendOptions) (transport.MessageRef, error)
}

// Audience lists recipients and lets the fan-out drop dead ones.
type Audience interface {
	UserIDs(ctx context.Context) ([]int64, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Tally is the outcome of one fan-out. Removed counts recipients
// dropped from the audience after a blocked or deactivated signal;
// those are included in Failed.
type Tally struct {
	Attempted int
	Succeeded int
	Failed    int
	Removed   int
}

// Job is a snapshot of one broadcast run.
type Job struct {
	ID        string
	StartedAt time.Time
	Done      bool
	Tally     Tally
}

type Config struct {
	Rate  float64 // messages per second; 0 means DefaultRate
	Burst int     // 0 means 1
}

type Service struct {
	sender   Sender
	audience Audience
	limiter  *rate.Limiter
	log      logx.Logger
	metrics  *metrics.Metrics

	pause func(ctx context.Context, d time.Duration)

	mu   sync.Mutex
	jobs map[string]*Job
}

func New(cfg Config, sender Sender, audience Audience, log logx.Logger, m *metrics.Metrics) *Service {
	r := cfg.Rate
	if r <= 0 {
		r = DefaultRate
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		sender:   sender,
		audience: audience,
		limiter:  rate.NewLimiter(rate.Limit(r), burst),
		log:      log.With(logx.String("component", "broadcast")),
		metrics:  m,
		pause:    sleepCtx,
		jobs:     make(map[string]*Job),
	}
}

// Apply retunes the rate limiter in place. Running jobs pick up the new
// pace on their next send.
func (s *Service) Apply(cfg Config) {
	r := cfg.Rate
	if r <= 0 {
		r = DefaultRate
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	s.limiter.SetLimit(rate.Limit(r))
	s.limiter.SetBurst(burst)
}

var errNoAudience = errors.New("broadcast: no audience available")

// Launch starts a fan-out of src in the background and returns the job
// id. Progress is visible through Status.
func (s *Service) Launch(ctx context.Context, src transport.MessageRef) (string, error) {
	if s.audience == nil {
		return "", errNoAudience
	}
	ids, err := s.audience.UserIDs(ctx)
	if err != nil {
		return "", fmt.Errorf("broadcast: audience lookup: %w", err)
	}
	job := &Job{ID: uuid.NewString(), StartedAt: time.Now()}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go func() {
		tally := s.Run(ctx, src, ids)
		s.mu.Lock()
		job.Tally = tally
		job.Done = true
		s.mu.Unlock()
	}()
	return job.ID, nil
}

// Status returns a copy of the job record.
func (s *Service) Status(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Run copies src to every recipient in turn. A throttle response is
// honored by sleeping the advertised interval and retrying that
// recipient once; any further failure moves on. Blocked and deactivated
// recipients are removed from the audience.
func (s *Service) Run(ctx context.Context, src transport.MessageRef, ids []int64) Tally {
	var t Tally
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		t.Attempted++
		err := s.sendOnce(ctx, id, src)
		if te, ok := transport.AsThrottled(err); ok {
			s.pause(ctx, te.RetryAfter)
			err = s.sendOnce(ctx, id, src)
		}
		switch {
		case err == nil:
			t.Succeeded++
			if s.metrics != nil {
				s.metrics.BroadcastSent.Inc()
			}
		case errors.Is(err, transport.ErrBlocked):
			t.Failed++
			t.Removed++
			if s.metrics != nil {
				s.metrics.BroadcastFailed.Inc()
			}
			if s.audience != nil {
				if derr := s.audience.DeleteUser(ctx, id); derr != nil {
					s.log.Warn("prune failed", logx.Int64("user", id), logx.Err(derr))
				}
			}
		default:
			t.Failed++
			if s.metrics != nil {
				s.metrics.BroadcastFailed.Inc()
			}
			s.log.Warn("send failed", logx.Int64("user", id), logx.Err(err))
		}
	}

	s.log.Info("broadcast finished",
		logx.Int("attempted", t.Attempted),
		logx.Int("succeeded", t.Succeeded),
		logx.Int("failed", t.Failed),
		logx.Int("removed", t.Removed),
	)
	return t
}

func (s *Service) sendOnce(ctx context.Context, id int64, src transport.MessageRef) error {
	_, err := s.sender.Copy(ctx, transport.ChatTarget{ChatID: id}, src, nil)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
