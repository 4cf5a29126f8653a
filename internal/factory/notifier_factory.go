package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/adapters/notify"
	"github.com/savegrandma/phishguard/internal/config"
	"github.com/savegrandma/phishguard/internal/core"
)

// NotifierFactory creates notification sinks based on configuration
type NotifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateNotifier creates a notifier based on the configuration
func (f *NotifierFactory) CreateNotifier() (core.Notifier, error) {
	switch f.cfg.GetString("notify.type") {
	case "log":
		return notify.NewLogNotifier(f.logger), nil
	case "channel":
		return notify.NewChannelNotifier(f.cfg.GetInt("notify.buffer"), f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", f.cfg.GetString("notify.type"))
	}
}
