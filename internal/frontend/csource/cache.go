package csource

import (
	"fmt"
	"os"

	"github.com/maypok86/otter"
)

// DefaultCacheBytes bounds the total size of cached file contents.
const DefaultCacheBytes = 64 << 20

// ContentCache holds file contents shared by concurrent units. Entries are
// keyed by path, modification time and size, so an edited file is re-read.
type ContentCache struct {
	cache otter.Cache[string, []byte]
}

// NewContentCache creates a cache bounded to maxBytes of content.
func NewContentCache(maxBytes int) (*ContentCache, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	cache, err := otter.MustBuilder[string, []byte](maxBytes).
		Cost(func(key string, value []byte) uint32 {
			return uint32(len(key) + len(value))
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build content cache: %w", err)
	}
	return &ContentCache{cache: cache}, nil
}

// Read returns the contents of path, from the cache when the file is unchanged.
func (c *ContentCache) Read(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
	if content, ok := c.cache.Get(key); ok {
		return content, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, content)
	return content, nil
}

// Close releases the cache.
func (c *ContentCache) Close() {
	c.cache.Close()
}
