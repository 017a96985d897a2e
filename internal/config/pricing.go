package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ModelPrice holds per-token USD prices for one model.
type ModelPrice struct {
	Input  float64 `mapstructure:"input"`
	Output float64 `mapstructure:"output"`
}

// PricingConfig maps model identifiers to their price pair. DefaultModel names
// the entry used for models missing from the table.
type PricingConfig struct {
	DefaultModel string                `mapstructure:"defaultModel"`
	Models       map[string]ModelPrice `mapstructure:"models"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		DefaultModel: "gpt-4o-mini",
		Models: map[string]ModelPrice{
			"gpt-4o":      {Input: 0.000005, Output: 0.000015},
			"gpt-4o-mini": {Input: 0.00000015, Output: 0.0000006},
			"gpt-4-turbo": {Input: 0.00001, Output: 0.00003},
		},
	}
}

// PricingConfigHolder serves the current pricing table and hot-reloads it when
// the backing file changes.
type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/aimeter/config")
	v.AddConfigPath("/etc/aimeter")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AIMETER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no file: run on compiled-in defaults
		holder := &PricingConfigHolder{}
		holder.current.Store(DefaultPricingConfig())
		return holder, nil
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPricingHolder wraps a fixed table, used by tests and embedders.
func NewStaticPricingHolder(cfg PricingConfig) (*PricingConfigHolder, error) {
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func validatePricingConfig(cfg PricingConfig) error {
	if len(cfg.Models) == 0 {
		return errors.New("pricing.models cannot be empty")
	}
	if _, ok := cfg.Models[cfg.DefaultModel]; !ok {
		return errors.New("pricing.defaultModel must reference a models entry")
	}
	for model, price := range cfg.Models {
		if price.Input < 0 || price.Output < 0 {
			return errors.New("pricing for " + model + " cannot be negative")
		}
	}
	return nil
}
