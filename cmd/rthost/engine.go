package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pipelined.dev/host"
	"pipelined.dev/host/builtin"
	"pipelined.dev/host/config"
	"pipelined.dev/host/log"
)

// setup loads configuration and builds the plugin chain. Engine clock is
// fixed at start, offline rendering drives timers from rendered frames.
func setup(path string, clock func() time.Time) (*host.Engine, *config.Config, time.Time, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, nil, time.Time{}, err
		}
	}
	logger := log.GetLogger()
	e, next := host.New(
		cfg.Engine.Settings(),
		host.WithLogger(logger),
		host.WithClock(clock),
		host.WithFactories(builtin.Factories(cfg.Engine.OutChannels)...),
	)
	ids, err := cfg.Build(e)
	if err != nil {
		e.Close()
		return nil, nil, time.Time{}, fmt.Errorf("error building plugin chain: %w", err)
	}
	logger.WithField("plugins", ids).Debug("plugin chain built")
	return e, cfg, next, nil
}

// notifier logs engine notifications.
func notifier(logger *logrus.Logger) func(host.Notification) {
	return func(n host.Notification) {
		entry := logger.WithField("kind", n.Kind)
		if n.Plugin.Unique != 0 {
			entry = entry.WithField("plugin", n.Plugin)
		}
		switch n.Kind {
		case host.ParamChanged:
			entry.WithField("param", n.Param.ID).WithField("value", n.Param.Value).Debug("notification")
		case host.PluginErrored, host.EngineCrashed:
			entry.WithError(n.Err).Error("notification")
		default:
			entry.Info("notification")
		}
	}
}
