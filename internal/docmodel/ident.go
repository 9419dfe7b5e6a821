package docmodel

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

var versionRe = regexp.MustCompile(`[Vv]?\d+\.\d+\.\d+`)

// ExtractVersion pulls a semantic-version-looking token out of a filename,
// normalized to a leading lowercase "v". Falls back to "v1.0.0".
func ExtractVersion(filename string) string {
	m := versionRe.FindString(filename)
	if m == "" {
		return "v1.0.0"
	}
	m = strings.TrimLeft(m, "Vv")
	return "v" + m
}

// DocID builds the document identity from a normalized base name and version.
func DocID(name, version string) string {
	return NormalizeDocName(name) + "_" + version
}

// NormalizeDocName makes a document name safe for use as an identifier.
func NormalizeDocName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "（", "(")
	name = strings.ReplaceAll(name, "）", ")")
	return name
}

// GlobalID computes the deterministic record identifier used as the upsert
// key: SHA1 over doc identity and structural path. Stable across re-runs on
// identical input, which is what makes re-indexing idempotent.
func GlobalID(docID, path string) string {
	h := sha1.Sum([]byte(docID + "#" + path))
	return hex.EncodeToString(h[:])
}
