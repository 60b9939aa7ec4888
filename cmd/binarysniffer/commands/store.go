package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "store",
		Short:   "Inspect or update the signature store",
		GroupID: "core",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newStoreStatusCommand())
	cmd.AddCommand(newStoreImportCommand())
	cmd.AddCommand(newStoreRebuildCommand())
	return cmd
}

func newStoreStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print component and pattern counts for the current signature store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, ok := runtimeFromContext(cmd.Context())
			if !ok {
				return fmt.Errorf("engine runtime unavailable")
			}
			status, err := rt.store.Status(cmd.Context())
			if err != nil {
				return err
			}

			outputFlag, _ := cmd.Flags().GetString("output")
			switch outputFlag {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				return enc.Encode(status)
			}

			last := "never"
			if status.LastImportUnix > 0 {
				last = time.Unix(status.LastImportUnix, 0).UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "components: %d\npatterns:   %d\nlast import: %s\n",
				status.ComponentCount, status.PatternCount, last)
			return nil
		},
	}
}

func newStoreImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <directory>",
		Short: "Bulk-load every *.json signature file in a directory into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, ok := runtimeFromContext(cmd.Context())
			if !ok {
				return fmt.Errorf("engine runtime unavailable")
			}
			summary, err := rt.store.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d files, rejected %d, wrote %d components / %d patterns / %d digests\n",
				summary.FilesProcessed, summary.FilesRejected, summary.ComponentsWritten,
				summary.PatternsWritten, summary.DigestsWritten)
			for _, w := range summary.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		},
	}
}

func newStoreRebuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <directory>",
		Short: "Re-import every signature file in a directory, refreshing the store in place",
		Long: `Rebuild re-runs import against the given directory. New components and
patterns are added and changed pattern confidences are updated; components
and patterns no longer present in the files are not removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, ok := runtimeFromContext(cmd.Context())
			if !ok {
				return fmt.Errorf("engine runtime unavailable")
			}

			summary, err := rt.store.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt: %d components / %d patterns / %d digests from %d files (%d rejected)\n",
				summary.ComponentsWritten, summary.PatternsWritten, summary.DigestsWritten,
				summary.FilesProcessed, summary.FilesRejected)
			return nil
		},
	}
}
