// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webready/internal/config"
	"github.com/xkilldash9x/webready/internal/observability"
)

const envPrefix = "WEBREADY"

// Execute builds the command tree and runs it under ctx.
func Execute(ctx context.Context) error {
	root, _ := newRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Error("Command execution failed.", zap.Error(err))
	}
	observability.Sync()
	return err
}

// newRootCmd returns a fresh command tree and the configuration it fills
// in before any subcommand runs.
func newRootCmd() (*cobra.Command, *config.Config) {
	var cfgFile string
	cfg := config.NewDefaultConfig()
	v := viper.New()

	root := &cobra.Command{
		Use:           "webready",
		Short:         "Drive browser pages with readiness-aware waits and retries.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(v, cfgFile); err != nil {
				return err
			}
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			loaded, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "webready"})
				return err
			}
			*cfg = *loaded
			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Configuration loaded.",
				zap.String("version", Version),
				zap.String("config_file", v.ConfigFileUsed()),
				zap.String("driver", cfg.Driver().Kind))
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is webready.yaml in . or $HOME)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(cfg), newVersionCmd())
	return root, cfg
}

// flagKeys maps command-line flags onto the configuration keys they
// override.
var flagKeys = map[string]string{
	"driver":        "driver.kind",
	"headless":      "driver.headless",
	"webdriver-url": "driver.webdriver_url",
	"timeout":       "wait.timeout",
	"interval":      "wait.interval",
	"clear-policy":  "input.clear_policy",
	"metrics-file":  "metrics.textfile",
	"log-level":     "logger.level",
}

// bindFlags binds the flags cmd defines to their configuration keys, so
// an explicitly set flag beats the config file and the environment.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// initializeConfig loads defaults, the config file and WEBREADY_* variables
// into v. A missing config file is not an error unless one was named.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)

	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("webready")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
