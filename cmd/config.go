package cmd

import (
	"reflect"
	"strings"

	"github.com/iotools/iotools/lib/env"
	"github.com/iotools/iotools/sniff"
	"github.com/iotools/iotools/sniff/config/configfile"
	"github.com/iotools/iotools/sniff/config/configmap"
	"github.com/iotools/iotools/sniff/config/configstruct"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// AddConfigFlags adds a flag for each config item, storing the values
// in ci
func AddConfigFlags(flagSet *pflag.FlagSet, ci *sniff.ConfigInfo) {
	flagSet.VarP(&ci.LogLevel, "log-level", "", "Log level DEBUG|INFO|NOTICE|ERROR")
	flagSet.BoolVarP(&ci.UseJSONLog, "use-json-log", "", ci.UseJSONLog, "Use json log format")
	flagSet.VarP(&ci.Threshold, "threshold", "", "Bytes held in memory before spilling to disk")
	flagSet.StringVarP(&ci.TempDir, "temp-dir", "", ci.TempDir, "Directory for spill files."+env.ShellExpandHelp)
	flagSet.VarP(&ci.ExecutionModel, "execution-model", "", "Which goroutines run producers ("+ci.ExecutionModel.Help()+")")
	flagSet.IntVarP(&ci.PoolSize, "pool-size", "", ci.PoolSize, "Number of producers the shared pool runs at once")
	flagSet.IntVarP(&ci.Buffers, "buffers", "", ci.Buffers, "Number of buffers queued between producer and consumer")
	flagSet.VarP(&ci.BufferSize, "buffer-size", "", "Size of each buffer")
	flagSet.VarP(&ci.CloseTimeout, "close-timeout", "", "How long close waits for a producer (0 for ever)")
	flagSet.IntVarP(&ci.MaxLevels, "max-levels", "", ci.MaxLevels, "Most formats to detect in a chain")
	flagSet.StringVarP(&ci.Formats, "formats", "", ci.Formats, "Comma separated formats to detect, empty for all")
}

// flagName turns a config item name into a flag name
func flagName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// LoadConfig builds the config from the defaults, then the config
// file at path if set, then the IOTOOLS_ environment, then any flags
// in flagSet the user set. The flag values are read from flagConfig.
func LoadConfig(path string, flagSet *pflag.FlagSet, flagConfig *sniff.ConfigInfo) (*sniff.ConfigInfo, error) {
	m := configmap.New()
	if path != "" {
		f, err := configfile.Load(env.ShellExpand(path))
		if err != nil {
			return nil, err
		}
		m.AddGetter(f)
	}
	m.AddGetter(sniff.EnvGetter{})
	ci, err := sniff.ConfigFromMap(m, sniff.NewConfig())
	if err != nil {
		return nil, err
	}
	err = overlayFlags(flagSet, flagConfig, ci)
	if err != nil {
		return nil, err
	}
	ci.TempDir = env.ShellExpand(ci.TempDir)
	return ci, errors.Wrap(ci.Check(), "bad flags")
}

// overlayFlags copies the items set on the command line from
// flagConfig into ci
func overlayFlags(flagSet *pflag.FlagSet, flagConfig, ci *sniff.ConfigInfo) error {
	items, err := configstruct.Items(flagConfig)
	if err != nil {
		return err
	}
	src := reflect.ValueOf(flagConfig).Elem()
	dst := reflect.ValueOf(ci).Elem()
	for _, item := range items {
		flag := flagSet.Lookup(flagName(item.Name))
		if flag == nil || !flag.Changed {
			continue
		}
		dst.Field(item.Num).Set(src.Field(item.Num))
	}
	return nil
}
