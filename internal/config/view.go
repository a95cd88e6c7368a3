package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ViewConfig tunes how customer usage views are built. It is read from view.yml
// and reloaded when the file changes.
type ViewConfig struct {
	WindowDays      int           `mapstructure:"windowDays"`
	Interval        string        `mapstructure:"interval"`
	Locale          string        `mapstructure:"locale"`
	HideCurrentYear bool          `mapstructure:"hideCurrentYear"`
	SettleTimeout   time.Duration `mapstructure:"settleTimeout"`
	StreamRefresh   time.Duration `mapstructure:"streamRefresh"`
	StreamHeartbeat time.Duration `mapstructure:"streamHeartbeat"`
}

func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		WindowDays:      7,
		Interval:        "day",
		Locale:          "en-US",
		HideCurrentYear: true,
		SettleTimeout:   5 * time.Second,
		StreamRefresh:   time.Minute,
		StreamHeartbeat: 15 * time.Second,
	}
}

var viewIntervals = map[string]struct{}{
	"hour":  {},
	"day":   {},
	"week":  {},
	"month": {},
	"year":  {},
}

type ViewConfigHolder struct {
	current atomic.Value // holds ViewConfig
}

// NewViewConfigHolder loads view.yml from the configured directory, the system
// config directory or the working directory. A missing file yields defaults.
func NewViewConfigHolder(cfg Config, log *zap.Logger) (*ViewConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("view")
	v.SetConfigType("yml")
	if cfg.ViewConfigDir != "" {
		v.AddConfigPath(cfg.ViewConfigDir)
	}
	v.AddConfigPath("/etc/chargeview")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CHARGEVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return loadViewConfig(v, cfg.ViewConfigWatch, log)
}

func loadViewConfig(v *viper.Viper, watch bool, log *zap.Logger) (*ViewConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.view")

	setViewDefaults(v)
	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	cfg, err := decodeViewConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &ViewConfigHolder{}
	holder.current.Store(cfg)

	if found && watch {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeViewConfig(v)
			if err != nil {
				log.Warn("invalid view config ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("view config reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func setViewDefaults(v *viper.Viper) {
	defaults := DefaultViewConfig()
	v.SetDefault("view.windowDays", defaults.WindowDays)
	v.SetDefault("view.interval", defaults.Interval)
	v.SetDefault("view.locale", defaults.Locale)
	v.SetDefault("view.hideCurrentYear", defaults.HideCurrentYear)
	v.SetDefault("view.settleTimeout", defaults.SettleTimeout)
	v.SetDefault("view.streamRefresh", defaults.StreamRefresh)
	v.SetDefault("view.streamHeartbeat", defaults.StreamHeartbeat)
}

func decodeViewConfig(v *viper.Viper) (ViewConfig, error) {
	// Unmarshal walks every leaf key so file values and defaults merge per field.
	var doc struct {
		View ViewConfig `mapstructure:"view"`
	}
	if err := v.Unmarshal(&doc); err != nil {
		return ViewConfig{}, err
	}
	cfg := doc.View
	cfg.Interval = strings.ToLower(strings.TrimSpace(cfg.Interval))
	if err := validateViewConfig(cfg); err != nil {
		return ViewConfig{}, err
	}
	return cfg, nil
}

// NewStaticViewConfigHolder wraps a fixed config.
func NewStaticViewConfigHolder(cfg ViewConfig) *ViewConfigHolder {
	holder := &ViewConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *ViewConfigHolder) Get() ViewConfig {
	return h.current.Load().(ViewConfig)
}

func validateViewConfig(cfg ViewConfig) error {
	if cfg.WindowDays < 1 || cfg.WindowDays > 366 {
		return fmt.Errorf("view.windowDays must be between 1 and 366, got %d", cfg.WindowDays)
	}
	if _, ok := viewIntervals[cfg.Interval]; !ok {
		return fmt.Errorf("view.interval %q is not supported", cfg.Interval)
	}
	if cfg.SettleTimeout <= 0 {
		return errors.New("view.settleTimeout must be positive")
	}
	if cfg.StreamRefresh < 0 {
		return errors.New("view.streamRefresh cannot be negative")
	}
	if cfg.StreamHeartbeat <= 0 {
		return errors.New("view.streamHeartbeat must be positive")
	}
	return nil
}
