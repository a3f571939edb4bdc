package util

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nhttp "github.com/chaos-io/cutout/util/http"
)

func halfTransparent(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if x < w/2 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: a})
		}
	}
	return img
}

func TestOpenImage(t *testing.T) {
	dir := t.TempDir()

	t.Run("not found", func(t *testing.T) {
		_, err := OpenImage(filepath.Join(dir, "missing.png"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

		_, err := OpenImage(path)
		require.Error(t, err)
		assert.False(t, errors.Is(err, fs.ErrNotExist))
		assert.Contains(t, err.Error(), "decode notes.txt")
	})

	t.Run("png", func(t *testing.T) {
		path := filepath.Join(dir, "in.png")
		require.NoError(t, SaveImage(halfTransparent(8, 4), path))

		img, err := OpenImage(path)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())
	})
}

func TestSaveImage(t *testing.T) {
	t.Run("png keeps alpha", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.png")
		require.NoError(t, SaveImage(halfTransparent(6, 6), path))

		f, err := os.Open(path)
		require.NoError(t, err)
		defer func() {
			_ = f.Close()
		}()
		img, err := png.Decode(f)
		require.NoError(t, err)

		_, _, _, a := img.At(0, 0).RGBA()
		assert.Zero(t, a)
		_, _, _, a = img.At(5, 5).RGBA()
		assert.Equal(t, uint32(0xffff), a)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	})

	t.Run("unsupported extension", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.xyz")

		err := SaveImage(halfTransparent(2, 2), path)
		require.Error(t, err)
		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries)
	})

	t.Run("missing directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nope", "out.png")

		err := SaveImage(halfTransparent(2, 2), path)
		require.Error(t, err)
		_, statErr := os.Stat(path)
		assert.True(t, errors.Is(statErr, fs.ErrNotExist))
	})

	t.Run("replaces existing file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.png")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

		require.NoError(t, SaveImage(halfTransparent(3, 3), path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
		entries, _ := os.ReadDir(dir)
		assert.Len(t, entries, 1)
	})

	for _, mode := range []os.FileMode{0o600, 0o640, 0o664} {
		t.Run("replace keeps mode "+mode.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.png")
			require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))
			require.NoError(t, os.Chmod(path, mode))

			require.NoError(t, SaveImage(halfTransparent(3, 3), path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, mode, info.Mode().Perm())
		})
	}
}

func TestDownloadImage(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, halfTransparent(5, 7)))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cat.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	cli := nhttp.NewHTTPClient()

	img, err := DownloadImage(context.Background(), cli, server.URL+"/cat.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 7), img.Bounds())

	_, err = DownloadImage(context.Background(), cli, server.URL+"/dog.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestTrace(t *testing.T) {
	done := Trace("noop")
	assert.NotPanics(t, done)
}
