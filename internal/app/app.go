// Package app assembles the services into a running bot: config,
// logging, adapter, storage, delivery pipeline, and the hot-reload loop
// that keeps them aligned with the config file.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vaultbot/internal/bot"
	"vaultbot/internal/broadcast"
	"vaultbot/internal/config"
	"vaultbot/internal/delivery"
	"vaultbot/internal/health"
	"vaultbot/internal/metrics"
	"vaultbot/internal/runtime/supervisor"
	"vaultbot/internal/sched"
	"vaultbot/internal/shortener"
	"vaultbot/internal/store"
	kit "vaultbot/internal/transport"
	telegram "vaultbot/internal/transport/telegram"
	logx "vaultbot/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager
	sup     *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter
	store   store.Store
	short   *shortener.Pool
	metrics *metrics.Metrics
	deliver *delivery.Executor
	bcast   *broadcast.Service
	sched   *sched.Service
	health  *health.Service
	bot     *bot.Service

	started time.Time
	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole("INFO").With(logx.String("component", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New applies its config immediately, and the channel sink warns
	// when enabled without a target. Bootstrap with the channel disabled,
	// set the target, then Apply the real config.
	baseLogCfg := mapLogConfig(cfg)
	baseLogCfg.Channel.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("component", "app"))
	if cfg.Logging.Channel.ChatID != 0 {
		logSvc.SetChannelTarget(cfg.Logging.Channel.ChatID)
	}
	logSvc.Apply(mapLogConfig(cfg))

	m := metrics.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(sc, log.With(logx.String("component", "store")))
	if err != nil {
		return nil, err
	}
	if st != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	verifyTimeout, err := config.ParseDurationOrDefault("verify.timeout", cfg.Verify.Timeout, 8*time.Second)
	if err != nil {
		return nil, err
	}
	short := shortener.New(cfg.Verify.Endpoints, verifyTimeout,
		log.With(logx.String("component", "shortener")),
		shortener.WithFallbackHook(func() { m.ShortenerFallbacks.Inc() }))

	schedSvc := sched.New(log.With(logx.String("component", "sched")))
	deliver := delivery.New(ad, schedSvc, cfg.Telegram.StorageChannel, log, m)

	var audience broadcast.Audience
	if st != nil {
		audience = st
	}
	bcast := broadcast.New(broadcast.Config{
		Rate:  cfg.Broadcast.RatePerSec,
		Burst: cfg.Broadcast.Burst,
	}, ad, audience, log, m)

	healthSvc := health.New(health.Config{Addr: cfg.Server.Addr, Pprof: cfg.Server.Pprof}, m,
		log.With(logx.String("component", "health")))

	botSvc := bot.New(cfg, bot.Deps{
		Adapter:   ad,
		Store:     st,
		Shortener: short,
		Delivery:  deliver,
		Broadcast: bcast,
		Sched:     schedSvc,
		Metrics:   m,
		Log:       log,
	})

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		store:   st,
		short:   short,
		metrics: m,
		deliver: deliver,
		bcast:   bcast,
		sched:   schedSvc,
		health:  healthSvc,
		bot:     botSvc,
		started: time.Now(),
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("component", "config")))
	a.cfgm.SetValidator(func(_ context.Context, next *config.Config) error {
		// Token and storage channel are wired into constructed services;
		// hot-swapping them would leave half the pipeline on the old value.
		prev := a.cfgm.Get()
		if prev != nil && next.Telegram.Token != prev.Telegram.Token {
			return errors.New("telegram.token cannot change at runtime; restart the bot")
		}
		if _, err := mapStorageConfig(next); err != nil {
			return err
		}
		if _, err := config.ParseDurationOrDefault("telegram.poll_timeout", next.Telegram.PollTimeout, 0); err != nil {
			return err
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if err := a.registerMaintenance(); err != nil {
		return err
	}
	a.sched.Start(a.sup.Context())

	if a.health.Enabled() {
		if err := a.health.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	a.sup.Go0("bot.dispatch", func(c context.Context) {
		a.bot.Run(c, a.updates)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.String("bot", a.adapter.Username()))
	return nil
}

// reloadLoop applies published config updates to the running services.
// Bursts are coalesced so only the newest config is applied.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs := config.SummarizeChange(lastApplied, newCfg)
			for _, s := range sections {
				if s == "storage" || s == "server" {
					a.log.Warn("section needs a restart to take effect", logx.String("section", s))
				}
			}
			if lastApplied != nil && newCfg.Telegram.StorageChannel != lastApplied.Telegram.StorageChannel {
				a.log.Warn("telegram.storage_channel changed; delivery keeps the old source until restart")
			}
			lastApplied = newCfg

			// Channel target first so Apply never sees enabled-without-target.
			a.logs.SetChannelTarget(newCfg.Logging.Channel.ChatID)
			a.logs.Apply(mapLogConfig(newCfg))

			a.bot.Apply(newCfg)
			a.bcast.Apply(broadcast.Config{
				Rate:  newCfg.Broadcast.RatePerSec,
				Burst: newCfg.Broadcast.Burst,
			})

			if len(sections) > 0 {
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			} else {
				a.log.Info("config reloaded (no changes)")
			}
		}
	}
}

// registerMaintenance wires the cron housekeeping jobs. Both read the
// live config when they fire, so reloads adjust them without re-register.
func (a *App) registerMaintenance() error {
	cfg := a.cfgm.Get()

	if spec := strings.TrimSpace(cfg.Maintenance.StatsSpec); spec != "" {
		if err := a.sched.Cron(spec, "maintenance.stats", func(c context.Context) {
			a.logStats(c)
		}); err != nil {
			return err
		}
	}

	if spec := strings.TrimSpace(cfg.Maintenance.PruneSpec); spec != "" {
		if a.store == nil {
			a.log.Warn("maintenance.prune_spec set but storage is disabled; job skipped")
			return nil
		}
		if err := a.sched.Cron(spec, "maintenance.prune", func(c context.Context) {
			a.pruneBatches(c)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) logStats(ctx context.Context) {
	fields := []logx.Field{logx.Duration("uptime", time.Since(a.started).Round(time.Second))}
	if a.store != nil {
		c, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if n, err := a.store.CountUsers(c); err == nil {
			fields = append(fields, logx.Int("users", n))
		}
		if n, err := a.store.CountFiles(c); err == nil {
			fields = append(fields, logx.Int("files", n))
		}
	}
	a.log.Info("stats", fields...)
}

func (a *App) pruneBatches(ctx context.Context) {
	retention, err := config.ParseDurationOrDefault("batch.retention",
		a.cfgm.Get().Batch.Retention, 0)
	if err != nil || retention <= 0 {
		return
	}
	c, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := a.store.PruneBatches(c, time.Now().Add(-retention))
	if err != nil {
		a.log.Warn("batch prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		a.log.Info("batches pruned", logx.Int("removed", n))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// step bounds each shutdown phase so one component cannot stall the
	// whole stop. A step that overruns is logged again when it finishes.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		var cancel context.CancelFunc
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", time.Since(start)))
				}
			}()
		}
	}

	step("health", 1*time.Second, func(c context.Context) error { return a.health.Stop(c) })
	step("sched", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("store", 1*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Channel: logx.ChannelConfig{
			Enabled:    cfg.Logging.Channel.Enabled,
			ChatID:     cfg.Logging.Channel.ChatID,
			MinLevel:   cfg.Logging.Channel.MinLevel,
			RatePerSec: cfg.Logging.Channel.RatePerSec,
		},
	}
}
