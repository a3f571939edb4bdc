package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

// StartCleanup schedules removal of results older than ttl on the given
// cron spec, e.g. "@every 10m".
func (s *Server) StartCleanup(spec string, ttl time.Duration) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := s.cleanup(time.Now(), ttl)
		if err != nil {
			log.Error().Err(err).Msg("cleanup results")
			return
		}
		if n > 0 {
			log.Info().Int("removed", n).Msg("cleanup results")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", spec, err)
	}

	c.Start()
	s.cron = c
	return nil
}

// Stop waits for a running cleanup to finish.
func (s *Server) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// cleanup deletes results whose ksuid timestamp is older than ttl.
// Files that are not named <ksuid>.png are left alone.
func (s *Server) cleanup(now time.Time, ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(s.resultDir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".png" {
			continue
		}
		id, err := ksuid.Parse(strings.TrimSuffix(name, ".png"))
		if err != nil {
			continue
		}
		if now.Sub(id.Time()) < ttl {
			continue
		}
		if err := os.Remove(filepath.Join(s.resultDir, name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
