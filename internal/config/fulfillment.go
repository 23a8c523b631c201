package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FulfillmentConfig carries operational shipping parameters that ops
// tune without a redeploy: per-courier transit times and tracking URL
// templates.
type FulfillmentConfig struct {
	Couriers           []CourierConfig `mapstructure:"couriers"`
	DefaultTransitDays int             `mapstructure:"defaultTransitDays"`
}

type CourierConfig struct {
	Name        string `mapstructure:"name"`
	TransitDays int    `mapstructure:"transitDays"`
	TrackingURL string `mapstructure:"trackingUrl"`
}

func DefaultFulfillmentConfig() FulfillmentConfig {
	return FulfillmentConfig{
		DefaultTransitDays: 5,
		Couriers: []CourierConfig{
			{Name: "kerry", TransitDays: 2, TrackingURL: "https://th.kerryexpress.com/en/track/?track=%s"},
			{Name: "thailand-post", TransitDays: 4, TrackingURL: "https://track.thailandpost.co.th/?trackNumber=%s"},
			{Name: "flash", TransitDays: 3, TrackingURL: "https://www.flashexpress.co.th/tracking/?se=%s"},
		},
	}
}

type FulfillmentConfigHolder struct {
	current atomic.Value // holds FulfillmentConfig
}

func NewFulfillmentConfigHolder() (*FulfillmentConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("fulfillment")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/praxia/config") // Volume-mounted config
	v.AddConfigPath("/etc/praxia")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("PRAXIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultFulfillmentConfig()
		v.SetDefault("fulfillment.couriers", defaults.Couriers)
		v.SetDefault("fulfillment.defaultTransitDays", defaults.DefaultTransitDays)
	}

	var cfg FulfillmentConfig
	if err := v.UnmarshalKey("fulfillment", &cfg); err != nil {
		return nil, err
	}
	if err := validateFulfillmentConfig(cfg); err != nil {
		return nil, err
	}

	holder := &FulfillmentConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated FulfillmentConfig
		if err := v.UnmarshalKey("fulfillment", &updated); err != nil {
			log.Printf("[fulfillment-config] reload failed: %v", err)
			return
		}
		if err := validateFulfillmentConfig(updated); err != nil {
			log.Printf("[fulfillment-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[fulfillment-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *FulfillmentConfigHolder) Get() FulfillmentConfig {
	return h.current.Load().(FulfillmentConfig)
}

// NewStaticFulfillmentConfigHolder wraps a fixed config, for tests.
func NewStaticFulfillmentConfigHolder(cfg FulfillmentConfig) *FulfillmentConfigHolder {
	holder := &FulfillmentConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// Courier looks up a courier entry by name, case-insensitively.
func (c FulfillmentConfig) Courier(name string) (CourierConfig, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, courier := range c.Couriers {
		if strings.ToLower(courier.Name) == needle {
			return courier, true
		}
	}
	return CourierConfig{}, false
}

func validateFulfillmentConfig(cfg FulfillmentConfig) error {
	if cfg.DefaultTransitDays <= 0 {
		return errors.New("fulfillment.defaultTransitDays must be positive")
	}
	for _, courier := range cfg.Couriers {
		if strings.TrimSpace(courier.Name) == "" {
			return errors.New("fulfillment.couriers entries need a name")
		}
		if courier.TransitDays <= 0 {
			return errors.New("fulfillment.couriers transitDays must be positive")
		}
	}
	return nil
}
