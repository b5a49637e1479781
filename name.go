package tmplkit

import (
	"fmt"
	"path"
	"strings"
)

// LogicalName derives a template's logical name and format from its slash
// path relative to the root and the engine extension (with dot).
//
//	LogicalName("pongo2/html_test.html.pongo2", ".pongo2") // "pongo2/html_test", "html", true
//	LogicalName("notes/readme.pongo2", ".pongo2")          // "notes/readme", "", true
//
// ok is false when rel does not carry ext or nothing is left of the file name.
func LogicalName(rel, ext string) (name, format string, ok bool) {
	if ext == "" || !strings.HasSuffix(rel, ext) {
		return "", "", false
	}
	stem := strings.TrimSuffix(rel, ext)
	if path.Base(stem) == "" || strings.HasSuffix(stem, "/") {
		return "", "", false
	}
	name = stem
	if inner := path.Ext(stem); inner != "" && len(path.Base(stem)) > len(inner) {
		name = strings.TrimSuffix(stem, inner)
		format = strings.ToLower(inner[1:])
	}
	return name, format, name != ""
}

// ValidateName rejects names that cannot be logical template names:
// empty, absolute, containing backslashes or "." / ".." segments.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for seg := range strings.SplitSeq(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}
