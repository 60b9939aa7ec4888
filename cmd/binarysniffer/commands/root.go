package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/binarysniffer/binarysniffer/pkg/appctx"
	"github.com/binarysniffer/binarysniffer/pkg/config"
	"github.com/binarysniffer/binarysniffer/pkg/engine"
	"github.com/binarysniffer/binarysniffer/pkg/event"
	"github.com/binarysniffer/binarysniffer/pkg/logging"
	"github.com/binarysniffer/binarysniffer/pkg/store"
	"github.com/binarysniffer/binarysniffer/pkg/version"
)

const cliExecutable = "binarysniffer"

// NewCommand constructs the top-level binarysniffer CLI command: global
// flags, the config/logging/store lifecycle, and the analyze/dir/store
// subcommand tree.
func NewCommand() *cobra.Command {
	var (
		configFile string
		manager    *config.Manager
	)

	cmd := &cobra.Command{
		Use:     cliExecutable,
		Short:   "Detect open-source software components inside binaries and archives",
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager = config.NewManager()
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := manager.Get()

			if err := logging.ConfigureGlobalLogging(cfg.Log.Level); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			storePath := expandHome(cfg.Store.Path)
			if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
				return fmt.Errorf("prepare signature store directory: %w", err)
			}

			watched, err := store.OpenWatched(cmd.Context(), storePath, log.Logger)
			if err != nil {
				return fmt.Errorf("open signature store: %w", err)
			}

			watchCtx, cancel := context.WithCancel(context.Background())
			go func() {
				if err := watched.Start(watchCtx); err != nil && watchCtx.Err() == nil {
					log.Warn().Err(err).Msg("signature store watcher exited")
				}
			}()

			rt := &runtime{
				engine: engine.New(watched),
				store:  watched,
				events: event.New(),
				cancel: cancel,
			}

			ctx := appctx.WithConfig(cmd.Context(), manager)
			ctx = withRuntime(ctx, rt)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			rt, ok := runtimeFromContext(cmd.Context())
			if !ok {
				return nil
			}
			rt.cancel()
			return rt.store.Close()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().Bool("color", true, "Colorize table output")
	cmd.PersistentFlags().StringP("output", "o", "text", "Output format: text, json, yaml")

	config.BindFlags(cmd.PersistentFlags())
	config.BindEngineFlags(cmd.PersistentFlags())
	config.BindStoreFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(newAnalyzeCommand())
	cmd.AddCommand(newDirCommand())
	cmd.AddCommand(newStoreCommand())

	return cmd
}

// expandHome resolves a leading "~" to the invoking user's home directory,
// the one bit of shell behavior a flag/config value doesn't get for free.
func expandHome(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
