package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/logger"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "chatpsy",
		Short: "Local privacy gateway for chat relationship analysis",
		Long: `chatpsy anonymizes Telegram and WhatsApp chat exports on this machine.
Participant names become USER_<n> aliases, phone numbers and emails are
redacted, and only the anonymized text is ever sent to the analysis service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(opts.envFile)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default: ./config.yaml, ./configs, /etc/chatpsy or $HOME/.chatpsy)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env",
		"dotenv file with CHATPSY_* overrides; ignored when missing")

	root.AddCommand(
		newServeCmd(opts),
		newAnonymizeCmd(opts),
		newBatchCmd(opts),
		newVersionCmd(),
		newHealthCheckCmd(opts),
	)
	return root
}

// loadEnv exports variables from a dotenv file without overriding the
// real environment.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setup loads the configuration and builds the logger every command uses.
func (o *rootOptions) setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func newLogger(cfg config.LoggingConfig) (*logger.Logger, error) {
	loggerConfig := logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
	}

	if cfg.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:    cfg.File.Enabled,
			Path:       cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxAge:     cfg.File.MaxAge,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
		}
	}

	return logger.New(loggerConfig)
}
