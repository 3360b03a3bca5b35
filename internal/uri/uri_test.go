package uri

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cortex-index/internal/frontend"
	"github.com/mvp-joe/cortex-index/internal/frontend/fronttest"
)

// Test Plan for URI mapping:
// - FromPath maps absolute paths to escaped file:// URIs
// - Relative and empty paths have no URI
// - FromFile uses the file's real path and rejects nil files
// - ToPath inverts FromPath and rejects other schemes

func TestFromPath(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("posix paths")
	}

	tests := []struct {
		name string
		path string
		want string
		ok   bool
	}{
		{name: "absolute", path: "/proj/src/main.c", want: "file:///proj/src/main.c", ok: true},
		{name: "cleaned", path: "/proj/src/../inc/./a.h", want: "file:///proj/inc/a.h", ok: true},
		{name: "escaped", path: "/proj/my dir/a#b.h", want: "file:///proj/my%20dir/a%23b.h", ok: true},
		{name: "relative", path: "src/main.c", ok: false},
		{name: "empty", path: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FromPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromFile(t *testing.T) {
	t.Parallel()

	got, ok := FromFile(nil)
	assert.False(t, ok)
	assert.Empty(t, got)

	var f frontend.File = fronttest.NewFile("/proj/a.h")
	got, ok = FromFile(f)
	assert.True(t, ok)
	assert.Equal(t, "file:///proj/a.h", got)
}

func TestToPath(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("posix paths")
	}

	p, err := ToPath("file:///proj/my%20dir/a%23b.h")
	require.NoError(t, err)
	assert.Equal(t, "/proj/my dir/a#b.h", p)

	for _, path := range []string{"/a/b.c", "/x y/z.h"} {
		u, ok := FromPath(path)
		require.True(t, ok)
		back, err := ToPath(u)
		require.NoError(t, err)
		assert.Equal(t, path, back)
	}

	_, err = ToPath("https://example.com/a.c")
	assert.ErrorIs(t, err, ErrNotFileURI)

	_, err = ToPath("file://%zz")
	assert.Error(t, err)
}

func TestIsDrivePath(t *testing.T) {
	t.Parallel()

	assert.True(t, isDrivePath("C:/src/a.c"))
	assert.True(t, isDrivePath("d:"))
	assert.False(t, isDrivePath("/c:/x"))
	assert.False(t, isDrivePath("1:/x"))
	assert.False(t, isDrivePath("C"))
}
