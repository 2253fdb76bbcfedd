package sniff

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/iotools/iotools/sniff/config/configmap"
	"github.com/iotools/iotools/sniff/config/configstruct"
	"github.com/pkg/errors"
)

// Version of the tools
var Version = "v0.1.0-DEV"

// ConfigInfo is the construction time configuration.
//
// The config tags name the keys used in config files, the environment
// and on the command line.
type ConfigInfo struct {
	LogLevel       LogLevel       `config:"log_level"`
	UseJSONLog     bool           `config:"use_json_log"`
	Threshold      SizeSuffix     `config:"threshold"`       // bytes held in memory before spilling to disk
	TempDir        string         `config:"temp_dir"`        // where spill files go, "" for the OS default
	ExecutionModel ExecutionModel `config:"execution_model"` // which workers run bridge producers
	PoolSize       int            `config:"pool_size"`       // width of the shared pool
	Buffers        int            `config:"buffers"`         // number of hand-off buffers per bridge
	BufferSize     SizeSuffix     `config:"buffer_size"`     // size of each hand-off buffer
	CloseTimeout   Duration       `config:"close_timeout"`   // 0 waits for producers forever
	MaxLevels      int            `config:"max_levels"`      // recursion bound for the decode loop
	Formats        string         `config:"formats"`         // comma separated enabled formats, "" for all
}

// NewConfig creates a new config with everything set to the default
// value.  These are the ultimate defaults and are overridden by the
// config file, the environment and the command line.
func NewConfig() *ConfigInfo {
	c := new(ConfigInfo)

	// Set any values which aren't the zero for the type
	c.LogLevel = LogLevelNotice
	c.Threshold = SizeSuffix(16 * Mebi)
	c.ExecutionModel = ExecutionSharedPool
	c.PoolSize = 4
	c.Buffers = 4
	c.BufferSize = SizeSuffix(64 * Kibi)
	c.MaxLevels = 2

	return c
}

// EnabledFormats returns the Set of enabled formats.
//
// An empty Formats means every built in format.
func (c *ConfigInfo) EnabledFormats() Set {
	if strings.TrimSpace(c.Formats) == "" {
		return AllFormats()
	}
	return ParseSet(c.Formats)
}

// CloseTimeoutDuration returns CloseTimeout as a time.Duration
func (c *ConfigInfo) CloseTimeoutDuration() time.Duration {
	return time.Duration(c.CloseTimeout)
}

// Check the config for values which can't work
func (c *ConfigInfo) Check() error {
	if c.Threshold <= 0 {
		return errors.Errorf("threshold must be > 0, got %v", c.Threshold)
	}
	if c.MaxLevels < 1 {
		return errors.Errorf("max_levels must be >= 1, got %d", c.MaxLevels)
	}
	if c.PoolSize < 1 {
		return errors.Errorf("pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.Buffers < 1 {
		return errors.Errorf("buffers must be >= 1, got %d", c.Buffers)
	}
	if c.BufferSize <= 0 {
		return errors.Errorf("buffer_size must be > 0, got %v", c.BufferSize)
	}
	return nil
}

type configContextKeyType struct{}

// Context key for config
var configContextKey = configContextKeyType{}

// global config
var globalConfig = NewConfig()

// GetConfig returns the global or context sensitive config
func GetConfig(ctx context.Context) *ConfigInfo {
	if ctx == nil {
		return globalConfig
	}
	c := ctx.Value(configContextKey)
	if c == nil {
		return globalConfig
	}
	return c.(*ConfigInfo)
}

// CopyConfig copies the global config (if any) from srcCtx into
// dstCtx returning the new context.
func CopyConfig(dstCtx, srcCtx context.Context) context.Context {
	if srcCtx == nil {
		return dstCtx
	}
	c := srcCtx.Value(configContextKey)
	if c == nil {
		return dstCtx
	}
	return context.WithValue(dstCtx, configContextKey, c)
}

// AddConfig returns a mutable config structure based on a shallow
// copy of that found in ctx and returns a new context with that added
// to it.
func AddConfig(ctx context.Context) (context.Context, *ConfigInfo) {
	c := GetConfig(ctx)
	cCopy := new(ConfigInfo)
	*cCopy = *c
	newCtx := context.WithValue(ctx, configContextKey, cCopy)
	return newCtx, cCopy
}

// SetConfig replaces the global config. It should only be called
// once at start up.
func SetConfig(c *ConfigInfo) {
	globalConfig = c
}

// OptionToEnv converts an option name, e.g. "max_levels" into an
// environment name "IOTOOLS_MAX_LEVELS"
func OptionToEnv(name string) string {
	return "IOTOOLS_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// EnvGetter reads config items from IOTOOLS_* environment variables
type EnvGetter struct{}

// Get a config item from the environment
func (EnvGetter) Get(key string) (value string, ok bool) {
	return os.LookupEnv(OptionToEnv(key))
}

// check interface
var _ configmap.Getter = EnvGetter{}

// ConfigFromMap overlays the items found in m onto a copy of base
// and checks the result.
func ConfigFromMap(m configmap.Getter, base *ConfigInfo) (*ConfigInfo, error) {
	c := new(ConfigInfo)
	*c = *base
	err := configstruct.Set(m, c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	err = c.Check()
	if err != nil {
		return nil, errors.Wrap(err, "bad config")
	}
	return c, nil
}
