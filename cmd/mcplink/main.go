package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcplink/mcplink/pkg/agent"
	"github.com/mcplink/mcplink/pkg/agent/qwen"
	"github.com/mcplink/mcplink/pkg/audit"
	"github.com/mcplink/mcplink/pkg/bridge"
	"github.com/mcplink/mcplink/pkg/config"
	mcplog "github.com/mcplink/mcplink/pkg/log"
)

var (
	configPath string
	serverURL  string
	clientID   string
	logDir     string
	logLevel   string
	agentMode  string
)

var rootCmd = &cobra.Command{
	Use:   "mcplink",
	Short: "Bridge a local AI agent to a remote coordination server",
	Long: `mcplink keeps a persistent connection to a coordination server,
receives task requests over it, forwards each task to a local AI agent,
and returns the result. It reconnects forever under network failure.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the server and serve tasks until terminated",
	Long: `Connect to the coordination server and serve tasks until the process
receives SIGINT or SIGTERM. Connection drops are retried indefinitely.

Configuration comes from --config (YAML), MCPLINK_* environment
variables, and flags, in increasing order of precedence.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := mcplog.Init(mcplog.Config{Level: mcplog.LogLevel(logLevel)}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() { _ = mcplog.Sync() }()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		overlayFlags(&cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		rec, err := audit.NewRecorder(cfg.LogDir)
		if err != nil {
			return err
		}
		defer func() { _ = rec.Close() }()

		var initializer agent.Initializer
		switch cfg.Agent.Mode {
		case "echo":
			initializer = agent.Echo{}
		default:
			initializer = qwen.New(qwen.Config{
				BaseURL: cfg.Agent.BaseURL,
				APIKey:  cfg.Agent.APIKey,
				Model:   cfg.Agent.Model,
				TopP:    cfg.Agent.TopP,
			})
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sup := bridge.New(bridge.Config{
			ServerURL:        cfg.ServerURL,
			ClientID:         cfg.ClientID,
			KeepAlivePeriod:  cfg.KeepAlivePeriod.Std(),
			ReconnectDelay:   cfg.ReconnectDelay.Std(),
			HandshakeTimeout: cfg.HandshakeTimeout.Std(),
		}, rec, initializer)

		mcplog.Info("mcplink starting", "server", cfg.ServerURL, "clientId", cfg.ClientID, "agent", cfg.Agent.Mode)
		if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		mcplog.Info("mcplink stopped")
		return nil
	},
}

// overlayFlags applies explicitly-set flags on top of file and environment
// configuration. Flags win.
func overlayFlags(cfg *config.Config) {
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if clientID != "" {
		cfg.ClientID = clientID
	}
	if logDir != "" {
		cfg.LogDir = logDir
	}
	if agentMode != "" {
		cfg.Agent.Mode = agentMode
	}
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	runCmd.Flags().StringVar(&serverURL, "server", "", "Websocket URL of the coordination server")
	runCmd.Flags().StringVar(&clientID, "client-id", "", "Client identity announced to the server")
	runCmd.Flags().StringVar(&logDir, "log-dir", "", "Directory for durable logs and transcripts")
	runCmd.Flags().StringVar(&agentMode, "agent", "", "Agent mode: qwen or echo")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
