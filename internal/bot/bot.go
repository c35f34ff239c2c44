// Package bot is the update pipeline: it turns adapter updates into
// deliveries, gate prompts, admin actions and indexing operations.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"vaultbot/internal/broadcast"
	"vaultbot/internal/config"
	"vaultbot/internal/delivery"
	"vaultbot/internal/gate"
	"vaultbot/internal/linkcode"
	"vaultbot/internal/metrics"
	"vaultbot/internal/sched"
	"vaultbot/internal/shortener"
	"vaultbot/internal/store"
	"vaultbot/internal/transport"
	"vaultbot/pkg/logx"
)

type Service struct {
	adapter transport.Adapter
	store   store.Store // nil when storage is disabled
	short   *shortener.Pool
	deliver *delivery.Executor
	bcast   *broadcast.Service
	sched   *sched.Service
	log     logx.Logger
	metrics *metrics.Metrics

	started time.Time

	mu   sync.RWMutex
	st   settings
	gate *gate.Checker
}

// settings is the hot-reloadable slice of the config.
type settings struct {
	owner          int64
	admins         map[int64]struct{}
	storageChannel int64
	forceSub       []int64
	approveJoin    bool
	approveDelay   time.Duration
	verifyEnabled  bool
	tutorial       string
	protect        bool
	autoDelete     time.Duration
	pace           time.Duration
}

type Deps struct {
	Adapter   transport.Adapter
	Store     store.Store
	Shortener *shortener.Pool
	Delivery  *delivery.Executor
	Broadcast *broadcast.Service
	Sched     *sched.Service
	Metrics   *metrics.Metrics
	Log       logx.Logger
}

func New(cfg *config.Config, d Deps) *Service {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		adapter: d.Adapter,
		store:   d.Store,
		short:   d.Shortener,
		deliver: d.Delivery,
		bcast:   d.Broadcast,
		sched:   d.Sched,
		metrics: d.Metrics,
		log:     log.With(logx.String("component", "bot")),
		started: time.Now(),
	}
	s.Apply(cfg)
	return s
}

// Apply installs the reloadable parts of cfg. Durations are assumed
// validated; a value that stopped parsing keeps its zero default.
func (s *Service) Apply(cfg *config.Config) {
	if cfg == nil {
		return
	}
	admins := make(map[int64]struct{}, len(cfg.Telegram.AdminIDs))
	for _, id := range cfg.Telegram.AdminIDs {
		admins[id] = struct{}{}
	}
	strategy, _ := gate.ParseStrategy(cfg.ForceSub.Strategy)
	approveDelay, _ := config.ParseDurationField("force_sub.approve_delay", cfg.ForceSub.ApproveDelay)
	autoDelete, _ := config.ParseDurationField("delivery.auto_delete", cfg.Delivery.AutoDelete)
	pace, _ := config.ParseDurationField("delivery.pace", cfg.Delivery.Pace)

	if s.short != nil {
		s.short.SetEndpoints(cfg.Verify.Endpoints)
	}

	st := settings{
		owner:          cfg.Telegram.OwnerID,
		admins:         admins,
		storageChannel: cfg.Telegram.StorageChannel,
		forceSub:       append([]int64(nil), cfg.ForceSub.Channels...),
		approveJoin:    cfg.ForceSub.ApproveJoinRequests,
		approveDelay:   approveDelay,
		verifyEnabled:  cfg.Verify.Enabled,
		tutorial:       cfg.Verify.Tutorial,
		protect:        cfg.Delivery.ProtectContent,
		autoDelete:     autoDelete,
		pace:           pace,
	}

	s.mu.Lock()
	s.st = st
	s.gate = gate.New(s.adapter, strategy, s.log)
	s.mu.Unlock()
}

func (s *Service) settings() settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

func (s *Service) checker() *gate.Checker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gate
}

func (s *Service) links() linkcode.Links {
	return linkcode.Links{Username: s.adapter.Username()}
}

// Run consumes updates until the channel closes or ctx ends. Each update
// is handled on its own goroutine; deliveries pace themselves and must
// not stall unrelated users.
func (s *Service) Run(ctx context.Context, updates <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			go s.handle(ctx, u)
		}
	}
}

func (s *Service) handle(ctx context.Context, u transport.Update) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panic", logx.String("kind", string(u.Kind)), logx.Any("panic", r))
		}
	}()

	switch u.Kind {
	case transport.UpdateMessage:
		s.handleMessage(ctx, u.Message)
	case transport.UpdateChannelPost:
		s.handleChannelPost(ctx, u.Message)
	case transport.UpdateCallback:
		s.handleCallback(ctx, u.Callback)
	case transport.UpdateJoinRequest:
		s.handleJoinRequest(ctx, u.JoinRequest)
	}
}

func (s *Service) handleMessage(ctx context.Context, m *transport.Message) {
	if m == nil || m.IsGroup {
		return
	}
	text := strings.TrimSpace(m.Text)
	switch {
	case text == "/start" || strings.HasPrefix(text, "/start "):
		s.handleStart(ctx, m, strings.TrimSpace(strings.TrimPrefix(text, "/start")))
	case strings.HasPrefix(text, "/"):
		s.handleCommand(ctx, m, text)
	case text != "":
		s.handleSearch(ctx, m, text)
	}
}

func (s *Service) isAdmin(st settings, id int64) bool {
	if id == st.owner && id != 0 {
		return true
	}
	_, ok := st.admins[id]
	return ok
}

func (s *Service) reply(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) {
	if _, err := s.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		s.log.Warn("reply failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

// humanSize renders a byte count the way the indexed captions show it.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	f := float64(n)
	units := []string{"KB", "MB", "GB", "TB"}
	i := -1
	for f >= unit && i < len(units)-1 {
		f /= unit
		i++
	}
	return fmt.Sprintf("%.2f %s", f, units[i])
}
