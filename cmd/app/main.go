package main

import (
	"errors"
	"os"

	"captiondesk/internal/bootstrap"
	"captiondesk/internal/logging"
)

func main() {
	log := logging.New(logging.Options{Out: os.Stderr})

	app, err := bootstrap.New()
	if errors.Is(err, bootstrap.ErrAlreadyRunning) {
		log.Warn().Msg("another CaptionDesk window is already open")
		os.Exit(0)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap app")
	}

	if err := app.Run(); err != nil {
		log.Fatal().Err(err).Msg("run app")
	}
}
