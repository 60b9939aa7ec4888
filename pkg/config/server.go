package config

import (
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/binarysniffer/binarysniffer/pkg/engine"
	"github.com/binarysniffer/binarysniffer/pkg/paths"
)

// DefaultEngineConfig returns the default engine configuration, matching
// engine.DefaultOptions() but expressed as a plain, koanf-tagged struct.
func DefaultEngineConfig() EngineConfig {
	def := engine.DefaultOptions()
	return EngineConfig{
		Threshold:      def.Threshold,
		FuzzyEnabled:   def.FuzzyEnabled,
		FuzzyThreshold: def.FuzzyThreshold,
		MinMatches:     def.MinMatches,
		FeatureCap:     def.FeatureCap,
		Timeout:        def.Timeout,
		RecursionCap:   def.RecursionCap,
		FileCountCap:   def.FileCountCap,
		Workers:        0,
		Recursive:      def.Recursive,
	}
}

// DefaultStoreConfig returns the default store configuration: the
// signature database lives under the XDG (or platform-equivalent) data
// directory, alongside anything else the tool persists.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{Path: filepath.Join(paths.DataDir(), "signatures.db")}
}

// ToOptions converts a loaded EngineConfig into the engine.Options the
// façade actually consumes.
func (c EngineConfig) ToOptions() engine.Options {
	return engine.Options{
		Threshold:            c.Threshold,
		FuzzyEnabled:         c.FuzzyEnabled,
		FuzzyThreshold:       c.FuzzyThreshold,
		MinMatches:           c.MinMatches,
		FeatureCap:           c.FeatureCap,
		SizeCeiling:          c.SizeCeiling,
		Timeout:              c.Timeout,
		RecursionCap:         c.RecursionCap,
		FileCountCap:         c.FileCountCap,
		Workers:              c.Workers,
		IncludeHashes:        c.IncludeHashes,
		IncludeFuzzyHashes:   c.IncludeFuzzyHashes,
		DisableContextFilter: c.DisableContextFilter,
		NativeContainer:      c.NativeContainer,
		CollapseFamilies:     c.CollapseFamilies,
		Recursive:            c.Recursive,
	}
}

// BindEngineFlags binds engine-tunable flags to the provided FlagSet.
// Flags are namespaced under 'engine.' to mirror the koanf key layout.
func BindEngineFlags(flags *pflag.FlagSet) {
	defaults := DefaultEngineConfig()

	flags.Float64("engine.threshold", defaults.Threshold, "Minimum confidence for an emitted match")
	flags.Bool("engine.fuzzy_enabled", defaults.FuzzyEnabled, "Enable the fuzzy matching pass")
	flags.Int("engine.fuzzy_threshold", defaults.FuzzyThreshold, "LSH distance at or above which a fuzzy candidate is discarded")
	flags.Int("engine.min_matches", defaults.MinMatches, "Minimum pattern hits for a direct match")
	flags.Int("engine.feature_cap", defaults.FeatureCap, "Maximum features extracted per file")
	flags.Duration("engine.timeout", defaults.Timeout, "Per-file analysis timeout")
	flags.Int("engine.recursion_cap", defaults.RecursionCap, "Maximum nested-archive depth")
	flags.Int("engine.file_count_cap", defaults.FileCountCap, "Maximum members walked per archive")
	flags.Int("engine.workers", defaults.Workers, "Directory-scan worker count, 0 for GOMAXPROCS")
	flags.Bool("engine.recursive", defaults.Recursive, "Recurse into subdirectories for directory scans")
	flags.Bool("engine.include_hashes", false, "Compute MD5/SHA1/SHA256 file hashes")
	flags.Bool("engine.include_fuzzy_hashes", false, "Compute the fuzzy content hash")
	flags.Bool("engine.disable_context_filter", false, "Disable the native/mobile ecosystem context filter")
}

// BindStoreFlags binds store-path flags to the provided FlagSet.
func BindStoreFlags(flags *pflag.FlagSet) {
	defaults := DefaultStoreConfig()
	flags.String("store.path", defaults.Path, "Path to the SQLite signature store")
}
