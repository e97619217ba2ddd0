package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jitmcp/internal/app"
)

type globalOptions struct {
	configPath string
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	opts := globalOptions{
		configPath: "jitd.yaml",
	}

	root := &cobra.Command{
		Use:   "jitd",
		Short: "Just-in-time tool orchestrator: discover, hydrate, and call MCP tools on demand",
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to catalog config file")

	root.AddCommand(
		newServeCmd(logger, &opts),
		newAskCmd(logger, &opts),
		newValidateCmd(logger, &opts),
		newToolCmd(logger, &opts),
	)

	return root
}

func newServeCmd(logger *zap.Logger, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator as an MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(logger)
			return application.Serve(ctx, app.ServeConfig{
				ConfigPath: opts.configPath,
			})
		},
	}
}

func newAskCmd(logger *zap.Logger, opts *globalOptions) *cobra.Command {
	var (
		sessionID string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run one orchestrated turn and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(logger)
			result, err := application.Ask(ctx, app.AskConfig{
				ConfigPath: opts.configPath,
				Query:      strings.Join(args, " "),
				SessionID:  sessionID,
			})
			if err != nil {
				return err
			}

			switch output {
			case "json":
				return writeJSON(result)
			case "text", "":
				printTurnResult(result)
				return nil
			default:
				return errors.New("unknown output format: " + output)
			}
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "default", "session identifier")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func newValidateCmd(logger *zap.Logger, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the catalog config without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(logger)
			return application.Validate(cmd.Context(), opts.configPath)
		},
	}
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
