package rembg

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chaos-io/cutout/util"
)

const DefaultBin = "rembg"

// ExecRemBG delegates to the python rembg command line tool:
//
//	rembg i input.png output.png
type ExecRemBG struct {
	bin string
}

func NewExecRemBG(bin string) *ExecRemBG {
	if bin == "" {
		bin = DefaultBin
	}
	return &ExecRemBG{bin: bin}
}

func (e *ExecRemBG) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	dir, err := os.MkdirTemp("", "rembg-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	in := filepath.Join(dir, "input.png")
	out := filepath.Join(dir, "output.png")
	if err := util.SaveImage(img, in); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.bin, "i", in, out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("run %s: %w: %s", e.bin, err, strings.TrimSpace(string(output)))
	}

	return util.OpenImage(out)
}
