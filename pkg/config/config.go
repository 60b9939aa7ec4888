// pkg/config/config.go
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance.
// This should be called early in the application lifecycle, before Load.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex // To protect currentConfig during runtime updates
}

// NewManager creates a new ConfigManager.
// It initializes the global Koanf instance if not already done.
func NewManager( /*dbProvider dbprovider.Provider*/ ) *Manager { // Pass DB provider if used
	InitGlobalConfig() // Ensure global k is initialized
	// Initialize the Koanf instance if it hasn't been done already
	return &Manager{
		koanfInstance: k, // Use the global instance
		// dbProvider:    dbProvider,
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
// These serve as the baseline configuration if no other sources override them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info", // Default log level
			Format: "text", // Default log format
			File:   "",     // Default log file path
		},
		Store:  DefaultStoreConfig(),
		Engine: DefaultEngineConfig(),
	}
}

// Load loads configuration from various sources based on precedence.
// It populates the manager's currentConfig.
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	m.mu.Lock() // Lock for writing to m.koanfInstance and m.currentConfig
	defer m.mu.Unlock()

	defaultCfgMap := DefaultConfigAsMap()
	if err := m.koanfInstance.Load(confmap.Provider(defaultCfgMap, "."), nil); err != nil {
		return fmt.Errorf("error loading hardcoded defaults into koanf: %w", err)
	}

	// Config file (skipped when empty or missing), then environment variables.
	if err := (&FileSource{Path: customConfigFilePath}).Load(m.koanfInstance); err != nil {
		return err
	}
	if err := (&EnvSource{}).Load(m.koanfInstance); err != nil {
		return err
	}

	// Load command-line flags (highest precedence over files and env vars)
	if flags != nil {
		// The posflag.Provider needs the Koanf instance to correctly map flag names to Koanf keys.
		if err := m.koanfInstance.Load(posflag.Provider(flags, ".", m.koanfInstance), nil); err != nil {
			return fmt.Errorf("error loading command-line flags: %w", err)
		}

		debugFlag := flags.Lookup("debug")
		if debugFlag != nil && debugFlag.Value.String() == "true" {
			_ = m.koanfInstance.Set("log.level", "debug")
		}
	}

	// Unmarshal the final merged configuration into m.currentConfig
	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.currentConfig = newCfg

	// Apply any post-load processing or validation.
	m.postProcessConfig()

	// log.Printf("[DEBUG] Final configuration loaded into Manager. Log Level: %s", m.currentConfig.Log.Level)

	return nil
}

// LoadWithSources loads configuration from an explicit, ordered list of
// ConfigSource values, sorted by Priority before being applied. This is the
// extension point DefaultSources' built-in layering is built from; callers
// needing an extra layer (e.g. a project-local override file) provide their
// own ConfigSource and splice it into the slice at the desired priority.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := append([]ConfigSource(nil), sources...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })

	for _, src := range sorted {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("loading config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.currentConfig = newCfg
	m.postProcessConfig()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Return a copy to prevent modification of the internal state.
	// For deep copies, you might need a library or manual copying if structs are complex.
	// For this example, a shallow copy is shown.
	cfgCopy := m.currentConfig
	return cfgCopy
}

// UpdateRuntimeValue is a no-op: it always returns nil and leaves the
// current configuration unchanged, whatever key and value it is given.
func (m *Manager) UpdateRuntimeValue(key string, value interface{}) error {
	return nil
}

// postProcessConfig handles any adjustments needed after loading and unmarshaling.
func (m *Manager) postProcessConfig() {}

// DefaultConfigAsMap converts the DefaultConfig struct to a map[string]interface{}
// for Koanf's confmap.Provider. This is a bit manual but ensures Koanf knows all keys.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	// This can be done more elegantly with reflection or a library if the struct is very large.
	return map[string]interface{}{
		// Log configuration
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		// Store configuration
		"store.path": def.Store.Path,

		// Engine configuration
		"engine.threshold":               def.Engine.Threshold,
		"engine.fuzzy_enabled":           def.Engine.FuzzyEnabled,
		"engine.fuzzy_threshold":         def.Engine.FuzzyThreshold,
		"engine.min_matches":             def.Engine.MinMatches,
		"engine.feature_cap":             def.Engine.FeatureCap,
		"engine.size_ceiling":            def.Engine.SizeCeiling,
		"engine.timeout":                 def.Engine.Timeout,
		"engine.recursion_cap":           def.Engine.RecursionCap,
		"engine.file_count_cap":          def.Engine.FileCountCap,
		"engine.workers":                 def.Engine.Workers,
		"engine.include_hashes":          def.Engine.IncludeHashes,
		"engine.include_fuzzy_hashes":    def.Engine.IncludeFuzzyHashes,
		"engine.disable_context_filter":  def.Engine.DisableContextFilter,
		"engine.native_container":        def.Engine.NativeContainer,
		"engine.collapse_families":       def.Engine.CollapseFamilies,
		"engine.recursive":               def.Engine.Recursive,
	}
}

// BindFlags defines command-line flags corresponding to configuration settings.
// These flags allow overriding config file / environment variable settings.
// This function should be called when setting up Cobra commands.
func BindFlags(flags *pflag.FlagSet) {
	// Get default config to provide default values for flags' help text
	// defaults := DefaultConfig()

	// Log flags
	// flags.String("log.level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	// flags.String("log.format", defaults.Log.Format, "Log format (text, json)")
	// flags.String("log.file", defaults.Log.File, "Path to log file (optional, leave empty for stdout)")

	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")

	// Note: The main --config / -c flag for specifying the config file path
	// is typically defined directly on the root Cobra command's PersistentFlags.
}
