// Package config loads the options of a node executing collect phases
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes all environment variables read by Load, e.g. SIFQL_IDLE_TIMEOUT
const EnvPrefix = "SIFQL"

// Options configure the collect execution of a node
type Options struct {
	NodeID           string        `mapstructure:"node_id"`           // [REQUIRED] id of this node within the cluster routing
	GetPoolSize      int           `mapstructure:"get_pool_size"`     // workers of the "get" pool, for lookups and node-level rows
	SearchPoolSize   int           `mapstructure:"search_pool_size"`  // workers of the "search" pool, for scans over several local slices
	GenericPoolSize  int           `mapstructure:"generic_pool_size"` // workers of the "generic" pool, for everything else
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`      // how long a job may go without a keep-alive before it is killed
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"` // how often idle jobs are checked for
	JobMemoryLimit   int64         `mapstructure:"job_memory_limit"`  // memory ceiling per job in bytes, 0 for unlimited
	FailFast         bool          `mapstructure:"fail_fast"`         // iff true, the failure of one collector kills its siblings
	MaxLineSize      int           `mapstructure:"max_line_size"`     // the largest JSON line a file source accepts
	BatchSize        int           `mapstructure:"batch_size"`        // rows read per batch before a keep-alive is sent
	LogLevel         string        `mapstructure:"log_level"`         // TRACE, DEBUG, INFO, WARN, ERROR or FATAL
	Development      bool          `mapstructure:"development"`       // iff true, log in a human-readable format
}

var keys = []string{
	"node_id", "get_pool_size", "search_pool_size", "generic_pool_size", "idle_timeout",
	"watchdog_interval", "job_memory_limit", "fail_fast", "max_line_size", "batch_size",
	"log_level", "development",
}

// Load reads Options from the optional config file at path, overridden by environment variables
func Load(path string) (*Options, error) {
	return LoadWithDefaults(path, nil)
}

// LoadWithDefaults is like Load, using defaults for keys which neither the file nor the environment set
func LoadWithDefaults(path string, defaults map[string]interface{}) (*Options, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Unable to read config file %s: %w", path, err)
		}
	}
	opts := &Options{}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("Unable to parse configuration: %w", err)
	}
	if err := opts.EnsureDefaults(); err != nil {
		return nil, err
	}
	return opts, nil
}

// EnsureDefaults fills zero values with defaults, failing if a required option is missing
func (o *Options) EnsureDefaults() error {
	if len(o.NodeID) == 0 {
		return fmt.Errorf("Options.NodeID must be the id of this node within the cluster routing")
	}
	if o.GetPoolSize == 0 {
		o.GetPoolSize = runtime.NumCPU()
	}
	if o.SearchPoolSize == 0 {
		o.SearchPoolSize = runtime.NumCPU()*3/2 + 1
	}
	if o.GenericPoolSize == 0 {
		o.GenericPoolSize = runtime.NumCPU() * 4
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = 5 * time.Minute
	}
	if o.WatchdogInterval == 0 {
		o.WatchdogInterval = o.IdleTimeout / 10
	}
	if o.MaxLineSize == 0 {
		o.MaxLineSize = 1 << 20
	}
	if o.BatchSize == 0 {
		o.BatchSize = 1000
	}
	if len(o.LogLevel) == 0 {
		o.LogLevel = "INFO"
	}
	if o.GetPoolSize < 0 || o.SearchPoolSize < 0 || o.GenericPoolSize < 0 {
		return fmt.Errorf("Pool sizes must not be negative")
	}
	return nil
}

// Clone makes a copy of these Options
func (o *Options) Clone() *Options {
	c := *o
	return &c
}
