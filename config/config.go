package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/chaos-io/cutout/remover/rembg"
)

type Config struct {
	RemBG   rembg.Config
	Feather float64
	Trim    bool

	Addr        string
	ResultDir   string
	ResultTTL   time.Duration
	CleanupSpec string
	LogLevel    zerolog.Level
}

// Load reads .env (when present) and the process environment. Variables
// already set in the environment win over .env.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		RemBG: rembg.Config{
			Backend:    getString("CUTOUT_BACKEND", rembg.KindFlood),
			ComfyUIURL: getString("COMFYUI_URL", rembg.DefaultComfyUIURL),
			Bin:        getString("REMBG_BIN", rembg.DefaultBin),
		},
		Addr:        getString("CUTOUT_ADDR", ":8080"),
		ResultDir:   getString("CUTOUT_RESULT_DIR", "./output"),
		CleanupSpec: getString("CUTOUT_CLEANUP", "@every 10m"),
	}

	var err error
	if cfg.RemBG.Tolerance, err = getFloat("CUTOUT_TOLERANCE", rembg.DefaultTolerance); err != nil {
		return nil, err
	}
	if cfg.RemBG.MaxSize, err = getInt("CUTOUT_MAX_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.Feather, err = getFloat("CUTOUT_FEATHER", 0); err != nil {
		return nil, err
	}
	if cfg.Trim, err = getBool("CUTOUT_TRIM", false); err != nil {
		return nil, err
	}
	if cfg.ResultTTL, err = getDuration("CUTOUT_RESULT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(getString("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getFloat(key string, def float64) (float64, error) {
	v := getString(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getInt(key string, def int) (int, error) {
	v := getString(key, "")
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getBool(key string, def bool) (bool, error) {
	v := getString(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := getString(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
