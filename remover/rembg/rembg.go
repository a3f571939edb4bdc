package rembg

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Remover makes the background of an image transparent. Implementations
// return a new image and leave img untouched.
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

const (
	KindFlood    = "flood"
	KindBiRefNet = "birefnet"
	KindExec     = "exec"
)

type Config struct {
	Backend string

	// flood
	Tolerance float64

	// birefnet
	ComfyUIURL string
	MaxSize    int

	// exec
	Bin string
}

// New builds the Remover named by cfg.Backend. An empty backend means flood.
func New(cfg Config) (Remover, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", KindFlood:
		return NewFloodRemBG(cfg.Tolerance), nil
	case KindBiRefNet:
		b := NewBiRefNetRemBG(cfg.ComfyUIURL)
		if cfg.MaxSize > 0 {
			b.maxSize = cfg.MaxSize
		}
		return b, nil
	case KindExec:
		return NewExecRemBG(cfg.Bin), nil
	default:
		return nil, fmt.Errorf("unknown rembg backend %q", cfg.Backend)
	}
}
