package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jitmcp/internal/app"
	"jitmcp/internal/domain"
)

func newToolCmd(logger *zap.Logger, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Manage the tool registry",
	}

	cmd.AddCommand(
		newToolAddCmd(logger, opts),
		newToolListCmd(logger, opts),
		newToolRemoveCmd(logger, opts),
	)

	return cmd
}

func newToolAddCmd(logger *zap.Logger, opts *globalOptions) *cobra.Command {
	var (
		tool    domain.ToolMetadata
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a tool in the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(logger)
			if err := application.ToolAdd(cmd.Context(), opts.configPath, tool, replace); err != nil {
				return err
			}
			logger.Info("tool registered", zap.String("name", tool.Name))
			return nil
		},
	}

	cmd.Flags().StringVar(&tool.Name, "name", "", "tool name (required)")
	cmd.Flags().StringVar(&tool.Description, "description", "", "tool description (required)")
	cmd.Flags().StringVar(&tool.URI, "uri", "", "tool server locator, e.g. mcp://python/weather_server.py (required)")
	cmd.Flags().StringVar(&tool.Category, "category", "", "optional category")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing tool with the same name")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("uri")

	return cmd
}

func newToolListCmd(logger *zap.Logger, opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(logger)
			tools, err := application.ToolList(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				return writeJSON(tools)
			case "yaml":
				return writeYAML(tools)
			case "text", "":
				printTools(tools)
				return nil
			default:
				return errors.New("unknown output format: " + output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json, or yaml")
	return cmd
}

func newToolRemoveCmd(logger *zap.Logger, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a tool from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(logger)
			if err := application.ToolRemove(cmd.Context(), opts.configPath, args[0]); err != nil {
				return err
			}
			logger.Info("tool removed", zap.String("name", args[0]))
			return nil
		},
	}
}
