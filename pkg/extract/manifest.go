package extract

import (
	"encoding/xml"
	"path"
	"strings"
)

// parseManifest recognizes a small set of package-identifier manifests by
// archive-relative name and emits normalized package-identifier features.
// The second return value is false for anything not recognized, letting
// the caller fall through to ordinary extraction.
func parseManifest(name string, data []byte) ([]string, bool) {
	base := path.Base(name)
	switch {
	case base == "Info.plist":
		return parsePlist(data), true
	case strings.HasSuffix(name, ".pom"):
		return parsePOM(data), true
	case base == "METADATA" && strings.Contains(name, ".dist-info/"):
		return parseWheelMetadata(data), true
	case base == "MANIFEST.MF" && strings.HasPrefix(name, "META-INF/"):
		return parseJarManifest(data), true
	case base == "AndroidManifest.xml":
		return parseAndroidManifestBinary(data), true
	}
	return nil, false
}

// plistDict is enough of the Apple XML plist grammar to pull the
// bundle identifier and version keys out of Info.plist; the format
// otherwise nests arbitrary dict/array/primitive elements this extractor
// has no use for.
type plistDict struct {
	Keys    []string `xml:"key"`
	Strings []string `xml:"string"`
}

type plistDoc struct {
	Dict plistDict `xml:"dict"`
}

func parsePlist(data []byte) []string {
	var doc plistDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	var bundleID, version string
	for i, k := range doc.Dict.Keys {
		if i >= len(doc.Dict.Strings) {
			break
		}
		switch k {
		case "CFBundleIdentifier":
			bundleID = doc.Dict.Strings[i]
		case "CFBundleShortVersionString":
			version = doc.Dict.Strings[i]
		}
	}
	if bundleID == "" {
		return nil
	}
	feat := "bundle-id:" + bundleID
	if version != "" {
		feat += "@" + version
	}
	return []string{feat}
}

type pomProject struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Parent     struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
		Version    string `xml:"version"`
	} `xml:"parent"`
}

func parsePOM(data []byte) []string {
	var p pomProject
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil
	}
	group := firstNonEmpty(p.GroupID, p.Parent.GroupID)
	version := firstNonEmpty(p.Version, p.Parent.Version)
	if group == "" || p.ArtifactID == "" {
		return nil
	}
	feat := "maven:" + group + ":" + p.ArtifactID
	if version != "" {
		feat += ":" + version
	}
	return []string{feat}
}

func parseWheelMetadata(data []byte) []string {
	var name, version string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Name:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "Version:"):
			version = strings.TrimSpace(strings.TrimPrefix(line, "Version:"))
		}
	}
	if name == "" {
		return nil
	}
	feat := "pypi:" + name
	if version != "" {
		feat += ":" + version
	}
	return []string{feat}
}

func parseJarManifest(data []byte) []string {
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Implementation-Title:") || strings.HasPrefix(line, "Bundle-SymbolicName:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				v := strings.TrimSpace(parts[1])
				if v != "" {
					out = append(out, "jar:"+v)
				}
			}
		}
	}
	return out
}

// parseAndroidManifestBinary falls back to a plain string scan of the
// binary AXML container: AndroidManifest.xml inside an APK is compiled
// binary XML, not text, and no example in the retrieval pack carries a
// binary-XML decoder. The package name still appears as a printable
// string in the string pool, so a bounded strings pass recovers it
// well enough to emit a bundle-id feature.
func parseAndroidManifestBinary(data []byte) []string {
	c := newCollector(64)
	scanASCIIRuns(data, c, new(int))
	for _, s := range c.features {
		if strings.Count(s, ".") >= 2 && isLikelyPackageName(s) {
			return []string{"bundle-id:" + s}
		}
	}
	return nil
}

func isLikelyPackageName(s string) bool {
	for _, r := range s {
		if r != '.' && r != '_' && !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
