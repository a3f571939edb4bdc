package remover

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/chaos-io/cutout/remover/rembg"
	"github.com/chaos-io/cutout/util"
)

// BackgroundRemover turns one image file into a transparent-background
// image file.
type BackgroundRemover struct {
	RemBG rembg.Remover

	out             io.Writer
	feather         float64
	trim            bool
	skipTransparent bool
}

type Option func(*BackgroundRemover)

func WithRemover(r rembg.Remover) Option {
	return func(b *BackgroundRemover) { b.RemBG = r }
}

// WithOutput sets where status lines go. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(b *BackgroundRemover) { b.out = w }
}

// WithFeather softens the alpha edge with a gaussian blur of the given
// radius. Zero disables it.
func WithFeather(radius float64) Option {
	return func(b *BackgroundRemover) { b.feather = radius }
}

// WithTrim crops the result to the bounding box of its visible pixels.
func WithTrim(trim bool) Option {
	return func(b *BackgroundRemover) { b.trim = trim }
}

// WithSkipTransparent passes images that already have transparent pixels
// through without calling the remover. Off by default: every image goes
// through the remover.
func WithSkipTransparent(skip bool) Option {
	return func(b *BackgroundRemover) { b.skipTransparent = skip }
}

func NewBackgroundRemover(opts ...Option) *BackgroundRemover {
	b := &BackgroundRemover{
		RemBG: rembg.NewFloodRemBG(rembg.DefaultTolerance),
		out:   os.Stdout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Process loads inputPath, removes its background and writes the result to
// outputPath, whose extension picks the format. outputPath is only written
// when loading and removal both succeeded.
func (b *BackgroundRemover) Process(ctx context.Context, inputPath, outputPath string) error {
	_, _ = fmt.Fprintf(b.out, "Processing %s...\n", inputPath)

	img, err := util.OpenImage(inputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Error{Kind: ErrNotFound, Path: inputPath, Err: err}
		}
		return &Error{Kind: ErrDecode, Path: inputPath, Err: err}
	}

	result, err := b.Remove(ctx, img)
	if err != nil {
		return &Error{Kind: ErrRemove, Path: inputPath, Err: err}
	}

	if err := util.SaveImage(result, outputPath); err != nil {
		return &Error{Kind: ErrWrite, Path: outputPath, Err: err}
	}

	_, _ = fmt.Fprintf(b.out, "Saved transparent image to %s\n", outputPath)
	return nil
}

// Remove runs the in-memory part of Process: background removal followed by
// the optional feather and trim steps.
func (b *BackgroundRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	defer util.Trace("remove background")()

	var result image.Image
	if b.skipTransparent && rembg.HasUsefulAlpha(img) {
		log.Info().Msg("image already has transparency, skipping removal")
		result = img
	} else {
		var err error
		result, err = b.RemBG.Remove(ctx, img)
		if err != nil {
			return nil, err
		}
	}

	if b.feather > 0 {
		result = featherAlpha(result, b.feather)
	}

	if b.trim {
		trimmed, err := trimToAlpha(result, trimThreshold)
		if err != nil {
			return nil, err
		}
		result = trimmed
	}

	return result, nil
}

// Run is Process with every failure reported as a status line instead of
// returned. It never fails.
func (b *BackgroundRemover) Run(ctx context.Context, inputPath, outputPath string) {
	if err := b.Process(ctx, inputPath, outputPath); err != nil {
		log.Error().Err(err).Str("input", inputPath).Str("output", outputPath).Msg("remove background")
		_, _ = fmt.Fprintf(b.out, "Error: %v\n", err)
	}
}
