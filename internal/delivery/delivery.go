// Package delivery copies stored content to users and manages the
// self-destruct window on what it sends.
package delivery

import (
	"context"
	"fmt"
	"time"

	"vaultbot/internal/metrics"
	"vaultbot/internal/sched"
	"vaultbot/internal/transport"
	"vaultbot/pkg/logx"
)

// MinPace is the floor applied between consecutive copies of one
// delivery regardless of configuration.
const MinPace = 800 * time.Millisecond

const defaultNotice = "<b>The file(s) above will be deleted in %d minutes. Save or forward them now.</b>"

// Copier is the slice of the chat adapter delivery needs.
type Copier interface {
	Copy(ctx context.Context, to transport.ChatTarget, src transport.MessageRef, opt *transport.SendOptions) (transport.MessageRef, error)
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
	Delete(ctx context.Context, ref transport.MessageRef) error
}

type Options struct {
	// Protect forwards platform copy protection to every copy.
	Protect bool
	// AutoDelete schedules removal of each delivered copy after the
	// window. Zero disables the self-destruct path entirely.
	AutoDelete time.Duration
	// Pace is the delay between items. Values under MinPace are raised
	// to it.
	Pace time.Duration
}

// Result reports what a single delivery accomplished. Failed holds the
// storage message ids that could not be copied.
type Result struct {
	Sent   int
	Failed []int
}

type Executor struct {
	copier  Copier
	sched   *sched.Service
	log     logx.Logger
	metrics *metrics.Metrics

	// source is the storage channel messages are copied out of.
	source int64
	notice string

	pause func(ctx context.Context, d time.Duration)
}

func New(copier Copier, sc *sched.Service, source int64, log logx.Logger, m *metrics.Metrics) *Executor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Executor{
		copier:  copier,
		sched:   sc,
		log:     log.With(logx.String("component", "delivery")),
		metrics: m,
		source:  source,
		notice:  defaultNotice,
		pause:   sleepCtx,
	}
}

// Deliver copies each storage message id to the user in order. A failed
// item is recorded and iteration continues; the context aborting stops
// the remainder. When auto-delete is on, every delivered copy gets its
// own deletion job and the run ends with a notice message whose removal
// is scheduled independently.
func (e *Executor) Deliver(ctx context.Context, userID int64, ids []int, opts Options) Result {
	pace := opts.Pace
	if pace < MinPace {
		pace = MinPace
	}
	to := transport.ChatTarget{ChatID: userID}
	send := &transport.SendOptions{Protect: opts.Protect}

	var res Result
	for i, id := range ids {
		if ctx.Err() != nil {
			res.Failed = append(res.Failed, ids[i:]...)
			break
		}
		ref, err := e.copier.Copy(ctx, to, transport.MessageRef{ChatID: e.source, MessageID: id}, send)
		if err != nil {
			res.Failed = append(res.Failed, id)
			if e.metrics != nil {
				e.metrics.DeliveryFailed.Inc()
			}
			e.log.Warn("copy failed", logx.Int64("user", userID), logx.Int("msg", id), logx.Err(err))
		} else {
			res.Sent++
			if e.metrics != nil {
				e.metrics.Delivered.Inc()
			}
			if opts.AutoDelete > 0 {
				e.scheduleDelete(ref, opts.AutoDelete)
			}
		}
		if i < len(ids)-1 {
			e.pause(ctx, pace)
		}
	}

	if opts.AutoDelete > 0 && res.Sent > 0 {
		e.sendNotice(ctx, to, opts.AutoDelete)
	}
	return res
}

// sendNotice posts the self-destruct warning and schedules its own
// removal on the same window.
func (e *Executor) sendNotice(ctx context.Context, to transport.ChatTarget, window time.Duration) {
	minutes := int(window.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	text := fmt.Sprintf(e.notice, minutes)
	ref, err := e.copier.SendText(ctx, to, text, &transport.SendOptions{ParseMode: "HTML"})
	if err != nil {
		e.log.Warn("notice send failed", logx.Int64("user", to.ChatID), logx.Err(err))
		return
	}
	e.scheduleDelete(ref, window)
}

func (e *Executor) scheduleDelete(ref transport.MessageRef, after time.Duration) {
	e.sched.After(after, "delivery.autodelete", func(ctx context.Context) {
		// Deletion is best effort. The message may already be gone.
		if err := e.copier.Delete(ctx, ref); err != nil {
			e.log.Debug("autodelete skipped", logx.Int("msg", ref.MessageID), logx.Err(err))
		}
	})
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
