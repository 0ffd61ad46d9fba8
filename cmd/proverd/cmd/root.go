package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagHome      = "home"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagConfig    = "config"

	// EnvPrefix prefixes every environment override, e.g. PROVERD_LOOKUP.
	EnvPrefix = "PROVERD"

	logFormatPlain = "plain"
	logFormatJSON  = "json"
)

// DefaultNodeHome is the default home directory of proverd.
var DefaultNodeHome = func() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".proverd"
	}
	return filepath.Join(userHome, ".proverd")
}()

// ServerContext carries the resolved configuration and logger of a command.
type ServerContext struct {
	Viper  *viper.Viper
	Logger log.Logger
}

type serverContextKey struct{}

// GetServerContextFromCmd returns the context installed by the root command,
// or a default one when the command runs outside of it.
func GetServerContextFromCmd(cmd *cobra.Command) *ServerContext {
	if v := cmd.Context().Value(serverContextKey{}); v != nil {
		return v.(*ServerContext)
	}
	return &ServerContext{Viper: viper.New(), Logger: log.NewNopLogger()}
}

// NewRootCmd creates the root command for proverd.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "proverd",
		Short: "Peer-coordinated proof task scheduler",
		Long: `proverd accepts proof tasks, shares its task list with the nodes behind a DNS
lookup and elects one node per task to compute it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := loadViper(cmd)
			if err != nil {
				return err
			}

			logger, err := NewLogger(v.GetString(flagLogLevel), v.GetString(flagLogFormat), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, serverContextKey{}, &ServerContext{Viper: v, Logger: logger}))
			return nil
		},
	}

	rootCmd.PersistentFlags().String(flagHome, DefaultNodeHome, "directory for config and key material")
	rootCmd.PersistentFlags().String(flagLogLevel, "info", `log level, e.g. "debug" or "x/prover:debug,*:info"`)
	rootCmd.PersistentFlags().String(flagLogFormat, logFormatPlain, "log output format (plain|json)")
	rootCmd.PersistentFlags().String(flagConfig, "", "config file (default <home>/config/proverd.toml)")

	rootCmd.AddCommand(
		StartCmd(),
		ProveCmd(),
		SubmitCmd(),
		IDCmd(),
	)

	return rootCmd
}

// loadViper merges flags, PROVERD_* environment variables and the config
// file, in that order of precedence.
func loadViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	configFile := v.GetString(flagConfig)
	if configFile == "" {
		candidate := filepath.Join(v.GetString(flagHome), "config", "proverd.toml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	return v, nil
}

// NewLogger builds the process logger. level is either a single zerolog
// level or a module filter list understood by log.ParseLogLevel.
func NewLogger(level, format string, out io.Writer) (log.Logger, error) {
	var opts []log.Option

	switch format {
	case logFormatJSON:
		opts = append(opts, log.OutputJSONOption())
	case logFormatPlain, "":
	default:
		return nil, fmt.Errorf("unknown log format %q, expected %s or %s", format, logFormatPlain, logFormatJSON)
	}

	if lvl, err := zerolog.ParseLevel(level); err == nil && !strings.Contains(level, ":") {
		if lvl == zerolog.NoLevel {
			lvl = zerolog.InfoLevel
		}
		opts = append(opts, log.LevelOption(lvl))
	} else {
		filter, err := log.ParseLogLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		opts = append(opts, log.FilterOption(filter))
	}

	return log.NewLogger(out, opts...), nil
}
