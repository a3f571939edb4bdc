package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/remover"
	"github.com/chaos-io/cutout/remover/rembg"
)

const (
	inputPath  = "input/cute_cat_water.png"
	outputPath = "public/cute-cat-water.png"
)

// Every failure is printed and the process still exits 0.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	r, err := rembg.New(cfg.RemBG)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	remover.NewBackgroundRemover(
		remover.WithRemover(r),
		remover.WithFeather(cfg.Feather),
		remover.WithTrim(cfg.Trim),
	).Run(context.Background(), inputPath, outputPath)
}
