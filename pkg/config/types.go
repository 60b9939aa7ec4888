// pkg/config/types.go
package config

import "time"

// Config is the root configuration structure for the binarysniffer CLI.
// It aggregates all other specific configuration structs.
type Config struct {
	Log    LogConfig    `description:"Logging configuration" koanf:"log"`
	Store  StoreConfig  `description:"Signature store configuration" koanf:"store"`
	Engine EngineConfig `description:"Analysis engine configuration" koanf:"engine"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level" koanf:"level"`
	Format string `description:"Log format: json | text" koanf:"format"`
	File   string `description:"Log file path" koanf:"file"`
}

// StoreConfig points at the signature store backing every analysis.
type StoreConfig struct {
	Path string `description:"Path to the SQLite signature store" koanf:"path"`
}

// EngineConfig mirrors engine.Options; it exists as a separate,
// serializable type since engine.Options carries no koanf tags of its own.
type EngineConfig struct {
	Threshold            float64       `description:"Minimum confidence for an emitted match" koanf:"threshold"`
	FuzzyEnabled         bool          `description:"Enable the fuzzy matching pass" koanf:"fuzzy_enabled"`
	FuzzyThreshold       int           `description:"LSH distance at or above which a fuzzy candidate is discarded" koanf:"fuzzy_threshold"`
	MinMatches           int           `description:"Minimum pattern hits for a direct match" koanf:"min_matches"`
	FeatureCap           int           `description:"Maximum features extracted per file" koanf:"feature_cap"`
	SizeCeiling          int64         `description:"Maximum input file size in bytes, 0 for unbounded" koanf:"size_ceiling"`
	Timeout              time.Duration `description:"Per-file analysis timeout" koanf:"timeout"`
	RecursionCap         int           `description:"Maximum nested-archive depth" koanf:"recursion_cap"`
	FileCountCap         int           `description:"Maximum members walked per archive" koanf:"file_count_cap"`
	Workers              int           `description:"Directory-scan worker count, 0 for GOMAXPROCS" koanf:"workers"`
	IncludeHashes        bool          `description:"Compute MD5/SHA1/SHA256 file hashes" koanf:"include_hashes"`
	IncludeFuzzyHashes   bool          `description:"Compute the fuzzy content hash" koanf:"include_fuzzy_hashes"`
	DisableContextFilter bool          `description:"Disable the native/mobile ecosystem context filter" koanf:"disable_context_filter"`
	NativeContainer      bool          `description:"Force the native-container context filter on, in addition to the engine's own per-file detection" koanf:"native_container"`
	CollapseFamilies     bool          `description:"Report only the highest-confidence match per declared component family, instead of every family member that independently matched" koanf:"collapse_families"`
	Recursive            bool          `description:"Recurse into subdirectories for directory scans" koanf:"recursive"`
}
