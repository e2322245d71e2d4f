package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(t.TempDir())

	key, err := s.Save(ctx, "dish", "borscht.jpg", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "dish/"))
	assert.True(t, strings.HasSuffix(key, "/borscht.jpg"))
	assert.Len(t, strings.Split(key, "/"), 3)

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Open(ctx, key)
	assert.Error(t, err)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, key))
}

func TestCleanFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.png", "photo.png"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\dish.jpg`, "dish.jpg"},
		{"a:b?.jpg", "a_b_.jpg"},
		{"..", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanFilename(tt.in))
		})
	}
}

func TestSaveRejectsEmptyName(t *testing.T) {
	s := NewLocalStorage(t.TempDir())
	_, err := s.Save(context.Background(), "dish", "..", strings.NewReader("x"))
	assert.Error(t, err)
}
