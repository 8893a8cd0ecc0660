package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// InboxConfig holds tunables of the conversation and message core that may
// change without a restart.
type InboxConfig struct {
	PreviewMaxLength     int           `mapstructure:"previewMaxLength"`
	DefaultPageSize      int           `mapstructure:"defaultPageSize"`
	MaxPageSize          int           `mapstructure:"maxPageSize"`
	AudienceAvailability []string      `mapstructure:"audienceAvailability"`
	ResolverCacheTTL     time.Duration `mapstructure:"resolverCacheTTL"`
}

func DefaultInboxConfig() InboxConfig {
	return InboxConfig{
		PreviewMaxLength:     100,
		DefaultPageSize:      50,
		MaxPageSize:          250,
		AudienceAvailability: []string{"online", "busy"},
		ResolverCacheTTL:     30 * time.Second,
	}
}

type InboxConfigHolder struct {
	current atomic.Value // holds InboxConfig
}

// NewStaticInboxConfigHolder returns a holder that never reloads.
func NewStaticInboxConfigHolder(cfg InboxConfig) *InboxConfigHolder {
	holder := &InboxConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewInboxConfigHolder() (*InboxConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("inbox")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/chatdesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CHATDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInboxConfig()
	v.SetDefault("inbox.previewMaxLength", defaults.PreviewMaxLength)
	v.SetDefault("inbox.defaultPageSize", defaults.DefaultPageSize)
	v.SetDefault("inbox.maxPageSize", defaults.MaxPageSize)
	v.SetDefault("inbox.audienceAvailability", defaults.AudienceAvailability)
	v.SetDefault("inbox.resolverCacheTTL", defaults.ResolverCacheTTL)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg InboxConfig
	if err := v.UnmarshalKey("inbox", &cfg); err != nil {
		return nil, err
	}
	if err := validateInboxConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticInboxConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InboxConfig
		if err := v.UnmarshalKey("inbox", &updated); err != nil {
			log.Printf("[inbox-config] reload failed: %v", err)
			return
		}
		if err := validateInboxConfig(updated); err != nil {
			log.Printf("[inbox-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[inbox-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *InboxConfigHolder) Get() InboxConfig {
	if h == nil {
		return DefaultInboxConfig()
	}
	cfg, ok := h.current.Load().(InboxConfig)
	if !ok {
		return DefaultInboxConfig()
	}
	return cfg
}

// PageSize clamps a requested page size into the configured bounds.
func (c InboxConfig) PageSize(requested int) int {
	if requested <= 0 {
		return c.DefaultPageSize
	}
	if c.MaxPageSize > 0 && requested > c.MaxPageSize {
		return c.MaxPageSize
	}
	return requested
}

func validateInboxConfig(cfg InboxConfig) error {
	if cfg.PreviewMaxLength <= 0 {
		return errors.New("inbox.previewMaxLength must be positive")
	}
	if cfg.DefaultPageSize <= 0 || cfg.MaxPageSize <= 0 {
		return errors.New("inbox page sizes must be positive")
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		return errors.New("inbox.defaultPageSize cannot exceed inbox.maxPageSize")
	}
	if len(cfg.AudienceAvailability) == 0 {
		return errors.New("inbox.audienceAvailability cannot be empty")
	}
	return nil
}
