package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/weft/internal/app"
	"github.com/aretw0/weft/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "weft",
		Short:         "weft inspects and drives shared state and background tasks",
		Long:          `weft bundles observable stores, cancelable tasks and transient data persistence. The CLI polls endpoints, serves the inspection API and MCP tools, and edits persisted transient data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", config.DefaultPath, "Path to the YAML config file")
	root.PersistentFlags().String("log-level", "", "Override log_level (debug, info, warn, error)")
	root.PersistentFlags().StringToString("set", nil, "Override config values, e.g. --set redis.addr=host:6379")

	root.AddCommand(newVersionCmd(), newPollCmd(), newServeCmd(), newTransientCmd(), newMCPCmd())
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	overrides, _ := cmd.Flags().GetStringToString("set")
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if overrides == nil {
			overrides = map[string]string{}
		}
		overrides["log_level"] = level
	}
	if err := cfg.Apply(overrides); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openContainer loads config, builds the container and restores persisted state.
func openContainer(cmd *cobra.Command, opts ...app.Option) (*app.Container, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	c, err := app.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Bootstrap(cmd.Context()); err != nil {
		c.Dispose()
		return nil, err
	}
	return c, nil
}
