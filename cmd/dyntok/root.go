package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-dyntok/internal/config"
	"github.com/example/go-dyntok/internal/server"
	"github.com/example/go-dyntok/internal/store"
	"github.com/example/go-dyntok/internal/vocab"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "dyntok",
		Short:         "Dynamic-vocabulary tokenizer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newDecodeCmd())
	cmd.AddCommand(newVocabCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Store.Backend == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// openService loads the configured vocabulary. The returned close function
// releases the store.
func openService(ctx context.Context) (*vocab.Service, func(), error) {
	cfg, err := requireConfig()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	svc, err := vocab.NewService(ctx, cfg.Tokenizer, st, slog.Default())
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	return svc, func() { _ = st.Close() }, nil
}
