package symbols

import (
	"sort"
	"sync"
)

// FileClaims assigns each file to the first unit that indexes it, so a
// header's symbols are owned by exactly one unit across a build. Safe for
// concurrent use by independent units.
type FileClaims struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewFileClaims creates an empty claim table.
func NewFileClaims() *FileClaims {
	return &FileClaims{owners: make(map[string]string)}
}

// Claim records unit as the owner of uri unless another unit already owns it.
// It reports whether unit owns uri afterwards.
func (c *FileClaims) Claim(uri, unit string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	owner, ok := c.owners[uri]
	if !ok {
		c.owners[uri] = unit
		return true
	}
	return owner == unit
}

// Owner returns the unit owning uri.
func (c *FileClaims) Owner(uri string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	owner, ok := c.owners[uri]
	return owner, ok
}

// Release drops every claim held by unit and returns the released URIs.
func (c *FileClaims) Release(unit string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var released []string
	for uri, owner := range c.owners {
		if owner == unit {
			delete(c.owners, uri)
			released = append(released, uri)
		}
	}
	sort.Strings(released)
	return released
}

// Len returns the number of claimed files.
func (c *FileClaims) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.owners)
}
