package main

import (
	"os"
	"os/signal"

	"github.com/ptgott/gmailer/send"

	"github.com/rs/zerolog/log"
)

func main() {
	// Log with filename and line number. This writes to stderr, so it
	// doesn't mix with the confirmation line on stdout.
	// https://github.com/rs/zerolog/blob/7ccd4c940bf8a02fcc5f10e5475f9d3daff04d57/log/log.go#L13
	log.Logger = log.With().Caller().Logger()

	// Intercept interrupts so we can get more visibility into them. A send
	// that's cut short counts as a failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func(c chan os.Signal) {
		<-c
		log.Info().Msg("interrupt: exiting")
		os.Exit(send.ExitFailure)
	}(sigCh)

	os.Exit(send.Run(os.Args[1:], os.Stdout, os.Stderr))
}
