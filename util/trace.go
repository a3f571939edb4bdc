package util

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Trace logs msg and, when the returned func runs, the time spent since.
//
//	defer util.Trace("remove background")()
func Trace(msg string) func() {
	start := time.Now()
	log.Debug().Msgf("enter %s", msg)
	return func() {
		log.Debug().Dur("elapsed", time.Since(start)).Msgf("exit %s", msg)
	}
}
