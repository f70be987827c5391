package cli

import (
	"fmt"
	"strings"

	"issuewatch/internal/config"
	"issuewatch/internal/monitor"
	"issuewatch/internal/notify"
	"issuewatch/internal/storage"
	"issuewatch/internal/tracker"
	"issuewatch/pkg/logx"
)

// loadConfig parses and commits the config file named by --config.
func loadConfig() (*config.Manager, *config.Config, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return mgr, cfg, nil
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func storageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func trackerConfig(cfg *config.Config) (tracker.ClientConfig, error) {
	timeout, err := config.ParseDurationField("tracker.request_timeout", cfg.Tracker.RequestTimeout)
	if err != nil {
		return tracker.ClientConfig{}, err
	}
	return tracker.ClientConfig{
		RequestTimeout: timeout,
		BearerToken:    cfg.Tracker.BearerToken,
	}, nil
}

func notifyConfig(cfg *config.Config) (notify.Config, error) {
	window, err := config.ParseDurationField("notify.grouping_window", cfg.Notify.GroupingWindow)
	if err != nil {
		return notify.Config{}, err
	}
	drain, err := config.ParseDurationField("notify.drain_interval", cfg.Notify.DrainInterval)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		GroupingWindow: window,
		DrainInterval:  drain,
		QueueSize:      cfg.Notify.QueueSize,
		HistorySize:    cfg.Notify.HistorySize,
	}, nil
}

// terminalPredicate compiles the configured terminal status list into the
// predicate handed to the orchestrator. Matching is case-insensitive.
func terminalPredicate(statuses []string) monitor.TerminalPredicate {
	set := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			set[s] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return func(rec *tracker.Record) bool {
		if rec == nil {
			return false
		}
		_, ok := set[strings.ToLower(strings.TrimSpace(rec.Status))]
		return ok
	}
}
