package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/binarysniffer/binarysniffer/cmd/binarysniffer/internal/format"
	"github.com/binarysniffer/binarysniffer/pkg/appctx"
	"github.com/binarysniffer/binarysniffer/pkg/engine"
)

func newDirCommand() *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:     "dir <directory>",
		Short:   "Analyze every file under a directory and report the components found",
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDir(cmd, args[0], progress)
		},
	}

	cmd.Flags().BoolVar(&progress, "progress", false, "Log a line as each file finishes analysis")
	return cmd
}

func runDir(cmd *cobra.Command, root string, progress bool) error {
	outputFlag, _ := cmd.Flags().GetString("output")
	mode, err := format.ParseMode(outputFlag)
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

	if progress {
		opts.Events = rt.events
		rt.events.Subscribe(engine.FileAnalyzed, func(_ context.Context, data any) {
			ev, ok := data.(engine.FileAnalyzedEvent)
			if !ok {
				return
			}
			logger := log.Info()
			if ev.Err {
				logger = log.Warn()
			}
			logger.Str("batch_id", ev.BatchID).Str("path", ev.Path).Int("matches", ev.Matches).Msg("file analyzed")
		})
	}

	results, err := rt.engine.AnalyzeDirectory(cmd.Context(), root, opts)
	if err != nil {
		return fmt.Errorf("analyze directory: %w", err)
	}

	paths := make([]string, 0, len(results))
	for p := range results {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	useColor, _ := cmd.Flags().GetBool("color")
	f := format.New(cmd.OutOrStdout(), mode, useColor)
	return f.Many(results, paths)
}
