// Package config loads the service configuration from craftplane.yaml and
// the environment. Environment variables use the CRAFTPLANE_ prefix and
// override file values, e.g. CRAFTPLANE_LISTEN_ADDR.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Tenant seeds one account into the registry at startup. Real account
// management lives in the external account service; seeding covers
// single-node and development deployments.
type Tenant struct {
	ID       string `mapstructure:"id"`
	Email    string `mapstructure:"email"`
	Quota    int    `mapstructure:"quota"`
	APIToken string `mapstructure:"api_token"`
}

type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`

	Image        string `mapstructure:"image"`
	DataRoot     string `mapstructure:"data_root"`
	RconPortBase int    `mapstructure:"rcon_port_base"`
	RconPortMax  int    `mapstructure:"rcon_port_max"`
	RconPassword string `mapstructure:"rcon_password"`

	// ConsoleAddr is the host where instance console ports are published.
	ConsoleAddr        string        `mapstructure:"console_addr"`
	ConsoleTimeout     time.Duration `mapstructure:"console_timeout"`
	ConsoleConcurrency int64         `mapstructure:"console_concurrency"`

	RuntimeTimeout time.Duration `mapstructure:"runtime_timeout"`

	Workers        int `mapstructure:"workers"`
	TaskQueueDepth int `mapstructure:"task_queue_depth"`

	Tenants []Tenant `mapstructure:"tenants"`
}

// Load reads craftplane.yaml from dir (or the working directory when dir is
// empty) and applies environment overrides.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("craftplane")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/craftplane")

	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("image", "itzg/minecraft-server")
	v.SetDefault("data_root", "/var/lib/craftplane")
	v.SetDefault("rcon_port_base", 25600)
	v.SetDefault("rcon_port_max", 25699)
	v.SetDefault("console_addr", "127.0.0.1")
	v.SetDefault("console_timeout", 10*time.Second)
	v.SetDefault("console_concurrency", 8)
	v.SetDefault("runtime_timeout", 30*time.Second)
	v.SetDefault("workers", 2)
	v.SetDefault("task_queue_depth", 32)

	v.SetEnvPrefix("CRAFTPLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: defaults plus environment carry a dev setup.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RconPortBase <= 0 || c.RconPortMax < c.RconPortBase {
		return fmt.Errorf("invalid console port range %d-%d", c.RconPortBase, c.RconPortMax)
	}
	if c.RconPassword == "" {
		return fmt.Errorf("rcon_password must be set")
	}
	seen := make(map[string]bool, len(c.Tenants))
	for _, t := range c.Tenants {
		if t.ID == "" {
			return fmt.Errorf("tenant with empty id")
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate tenant id %q", t.ID)
		}
		seen[t.ID] = true
		if t.Quota < 0 {
			return fmt.Errorf("tenant %q has negative quota", t.ID)
		}
	}
	return nil
}
