// Package model defines the data types shared by the signature store, the
// matchers, and the engine façade: components, patterns, and the results a
// call to Analyze produces.
package model

// Ecosystem tags the runtime/packaging platform a component belongs to.
type Ecosystem string

const (
	EcosystemNative  Ecosystem = "native"
	EcosystemJVM     Ecosystem = "jvm"
	EcosystemAndroid Ecosystem = "android"
	EcosystemIOS     Ecosystem = "ios"
	EcosystemNPM     Ecosystem = "npm"
	EcosystemPyPI    Ecosystem = "pypi"
	EcosystemGo      Ecosystem = "go"
	EcosystemUnknown Ecosystem = "unknown"
)

// UnknownVersion is the literal placeholder used when a component's version
// could not be determined.
const UnknownVersion = "unknown"

// Component is a stable software identity: a name plus an optional version.
// Components are created at signature ingestion and are immutable afterward;
// they are removed only by a full store reingest.
type Component struct {
	ID          int64
	Name        string
	Version     string
	License     string
	Publisher   string
	Ecosystem   Ecosystem
	Description string
	// Family groups components known to legitimately share patterns
	// (e.g. forks or vendored copies of the same upstream codebase).
	Family string
}

// DisplayName renders "name@version", omitting the version suffix when it
// is the unknown placeholder.
func (c Component) DisplayName() string {
	if c.Version == "" || c.Version == UnknownVersion {
		return c.Name
	}
	return c.Name + "@" + c.Version
}

// EffectiveVersion returns the component's version, defaulting to the
// unknown placeholder when empty.
func (c Component) EffectiveVersion() string {
	if c.Version == "" {
		return UnknownVersion
	}
	return c.Version
}

// PatternContext hints at where in the input a pattern is expected to be
// found; it is informational and does not affect matching weight.
type PatternContext string

const (
	ContextPrefix        PatternContext = "prefix"
	ContextFunction      PatternContext = "function"
	ContextVersionString PatternContext = "version_string"
	ContextConstant      PatternContext = "constant"
	ContextResource      PatternContext = "resource"
	ContextManifestClass PatternContext = "manifest_class"
)

// Pattern is a literal string owned by exactly one component, used by the
// direct matcher to recognize that component's presence in a feature set.
type Pattern struct {
	ID          int64
	ComponentID int64
	Text        string
	Confidence  float64
	Context     PatternContext
}
