package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"issuewatch/internal/eventbus"
	"issuewatch/internal/monitor"
	"issuewatch/internal/notify"
	"issuewatch/internal/notify/telegram"
	rtsup "issuewatch/internal/runtime/supervisor"
	"issuewatch/internal/storage"
	"issuewatch/internal/tracker"
	"issuewatch/pkg/logx"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring daemon",
	Long: `Run the monitoring daemon: resume persisted tasks, poll each one on its
adaptive schedule, and dispatch notifications for detected changes.

The config file is watched for changes; log level and notification
preferences apply without restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runDaemon(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(ctx context.Context) error {
	mgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	defer logSvc.Close()
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()

	scfg, err := storageConfig(cfg)
	if err != nil {
		return err
	}
	store, err := storage.Open(scfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	tcfg, err := trackerConfig(cfg)
	if err != nil {
		return err
	}
	client := tracker.NewClient(tcfg, log.With(logx.String("comp", "tracker")))
	engine := tracker.NewEngine(client, log.With(logx.String("comp", "tracker")))

	sinks := []notify.Sink{notify.NewLogSink(log.With(logx.String("comp", "notify")))}
	if cfg.Telegram != nil {
		tg, err := telegram.New(telegram.Config{
			Token:    cfg.Telegram.Token,
			ChatID:   cfg.Telegram.ChatID,
			ThreadID: cfg.Telegram.ThreadID,
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return err
		}
		sinks = append(sinks, tg)
	}

	ncfg, err := notifyConfig(cfg)
	if err != nil {
		return err
	}
	// Preferences are read from the committed config at drain time, so a
	// config reload flips them without touching the dispatcher.
	prefs := func() notify.Preferences {
		c := mgr.Get()
		if c == nil {
			return notify.Preferences{}
		}
		return notify.Preferences{Enabled: c.Notify.Enabled, Grouping: c.Notify.Grouping}
	}
	dispatcher := notify.New(ncfg, prefs, sinks, log.With(logx.String("comp", "notify")), bus)
	dispatcher.Start(ctx)

	svc := monitor.New(monitor.Config{
		ErrorCeiling:   cfg.Monitor.ErrorCeiling,
		DigestSchedule: cfg.Monitor.DigestSchedule,
	}, client, engine, dispatcher, store,
		terminalPredicate(cfg.Tracker.TerminalStatuses),
		log.With(logx.String("comp", "monitor")), bus)

	svc.Start(ctx)
	if err := svc.Resume(ctx); err != nil {
		return err
	}

	sup := rtsup.New(ctx, rtsup.WithLogger(log.With(logx.String("comp", "runtime"))))
	sup.GoRestart("config.watch", mgr.Watch)

	updates := mgr.Subscribe(4)
	defer mgr.Unsubscribe(updates)
	sup.Go0("config.apply", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-updates:
				if !ok || c == nil {
					return
				}
				logSvc.Apply(loggingConfig(c))
				if ncfg, err := notifyConfig(c); err == nil {
					dispatcher.Apply(ncfg)
				}
			}
		}
	})

	// Mirror lifecycle events into the log at trace level.
	events, unsub := bus.Subscribe(32)
	defer unsub()
	sup.Go0("events", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				log.Trace("event", logx.String("type", ev.Type), logx.Any("data", ev.Data))
			}
		}
	})

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("issuewatch started", logx.Int("tasks", len(svc.Tasks())), logx.String("config", cfgPath))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Warn("monitor stop", logx.Err(err))
	}
	dispatcher.Stop(shutdownCtx)
	_ = sup.Stop(shutdownCtx)
	return nil
}
