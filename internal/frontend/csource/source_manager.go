package csource

import (
	"errors"
	"fmt"
	"os"

	"github.com/mvp-joe/cortex-index/internal/frontend"
)

// ErrNoContent is returned for files without a real path.
var ErrNoContent = errors.New("file has no content on disk")

// SourceManager serves file contents for one unit.
type SourceManager struct {
	main  *File
	cache *ContentCache
}

var _ frontend.SourceManager = (*SourceManager)(nil)

// NewSourceManager creates a source manager for main. A nil cache reads
// straight from disk.
func NewSourceManager(main *File, cache *ContentCache) *SourceManager {
	return &SourceManager{main: main, cache: cache}
}

func (s *SourceManager) MainFile() frontend.File {
	return s.main
}

// Content returns the bytes of f.
func (s *SourceManager) Content(f frontend.File) ([]byte, error) {
	if f == nil || f.RealPath() == "" {
		return nil, ErrNoContent
	}
	var (
		content []byte
		err     error
	)
	if s.cache != nil {
		content, err = s.cache.Read(f.RealPath())
	} else {
		content, err = os.ReadFile(f.RealPath())
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return content, nil
}
