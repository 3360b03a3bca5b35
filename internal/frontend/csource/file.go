// Package csource is a C front-end built on tree-sitter. It resolves
// #include directives, reports preprocessing events to observers and
// produces declarations for a consumer.
package csource

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mvp-joe/cortex-index/internal/frontend"
)

// BuiltinName is the name of the pseudo file holding predefined macros.
const BuiltinName = "<built-in>"

// File is a source file known to a FileManager.
type File struct {
	name     string
	realPath string
	system   bool
}

var _ frontend.File = (*File)(nil)

func (f *File) Name() string     { return f.name }
func (f *File) RealPath() string { return f.realPath }
func (f *File) IsSystem() bool   { return f.system }

func (f *File) String() string {
	if f.realPath == "" {
		return f.name
	}
	return f.realPath
}

// FileManager uniques files by their real path, so every spelling of the
// same file yields the same *File.
type FileManager struct {
	mu      sync.Mutex
	files   map[string]*File
	builtin *File
}

// NewFileManager creates an empty file manager.
func NewFileManager() *FileManager {
	return &FileManager{
		files:   make(map[string]*File),
		builtin: &File{name: BuiltinName},
	}
}

// Builtin returns the pseudo file for predefined macros. It has no real path.
func (m *FileManager) Builtin() *File {
	return m.builtin
}

// GetFile returns the file at path, registering it on first use. The system
// flag of the first registration sticks.
func (m *FileManager) GetFile(path string, system bool) (*File, error) {
	real, err := realPath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", real)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[real]; ok {
		return f, nil
	}
	f := &File{name: path, realPath: real, system: system}
	m.files[real] = f
	return f, nil
}

// Len returns the number of registered files, excluding the builtin file.
func (m *FileManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
