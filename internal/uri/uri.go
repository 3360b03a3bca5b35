// Package uri maps front-end file identities to canonical file:// URIs.
package uri

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/mvp-joe/cortex-index/internal/frontend"
)

// Scheme is the only scheme produced by this package.
const Scheme = "file"

// ErrNotFileURI indicates a URI that does not use the file scheme.
var ErrNotFileURI = errors.New("not a file URI")

// FromFile returns the URI of f's real path. It reports false for a nil file
// or one without a realizable absolute path.
func FromFile(f frontend.File) (string, bool) {
	if f == nil {
		return "", false
	}
	return FromPath(f.RealPath())
}

// FromPath returns the URI for an absolute path. Relative or empty paths
// have no stable identity and report false.
func FromPath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	slashed := filepath.ToSlash(filepath.Clean(path))
	if isDrivePath(slashed) {
		// C:/x becomes /C:/x so the authority stays empty.
		slashed = "/" + slashed
	}
	if !strings.HasPrefix(slashed, "/") {
		return "", false
	}
	u := url.URL{Scheme: Scheme, Path: slashed}
	// url.URL omits the empty authority; file URIs keep it.
	return Scheme + "://" + u.EscapedPath(), true
}

// ToPath converts a file URI back into a native path.
func ToPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse uri %q: %w", raw, err)
	}
	if u.Scheme != Scheme {
		return "", fmt.Errorf("%w: %s", ErrNotFileURI, raw)
	}
	p := u.Path
	if len(p) > 2 && p[0] == '/' && isDrivePath(p[1:]) {
		p = p[1:]
	}
	return filepath.FromSlash(p), nil
}

func isDrivePath(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
