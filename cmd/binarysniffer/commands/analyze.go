package commands

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/binarysniffer/binarysniffer/cmd/binarysniffer/internal/format"
	"github.com/binarysniffer/binarysniffer/pkg/appctx"
	binerrors "github.com/binarysniffer/binarysniffer/pkg/errors"
)

var validate = validator.New()

type analyzeParams struct {
	Path   string `validate:"required"`
	Output string `validate:"required,oneof=text json yaml"`
}

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "analyze <file>",
		Short:   "Analyze a single file and report the components it contains",
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		RunE:    runAnalyze,
	}
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	params := analyzeParams{Path: args[0], Output: mustFlagString(cmd, "output")}
	if err := validate.Struct(params); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	mode, err := format.ParseMode(params.Output)
	if err != nil {
		return err
	}

	rt, ok := runtimeFromContext(cmd.Context())
	if !ok {
		return fmt.Errorf("engine runtime unavailable")
	}
	manager, ok := appctx.Config(cmd.Context())
	if !ok {
		return fmt.Errorf("config manager unavailable")
	}
	opts := manager.Get().Engine.ToOptions()

	result := rt.engine.Analyze(cmd.Context(), params.Path, opts)

	useColor, _ := cmd.Flags().GetBool("color")
	f := format.New(cmd.OutOrStdout(), mode, useColor)
	if err := f.One(result); err != nil {
		return err
	}
	if result.Error != nil {
		return binerrors.Newf(binerrors.Kind(result.Error.Kind), params.Path, "%s", result.Error.Cause)
	}
	return nil
}

func mustFlagString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return v
}
