package send

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ptgott/gmailer/email"
	"github.com/ptgott/gmailer/userconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Exit statuses. Every failure, whatever its kind, uses the same one.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// Confirmation is printed to stdout once the relay accepts the message.
const Confirmation = "Message sent."

// Run conducts a single parse, build and send cycle and returns the process
// exit status. args excludes the program name. The confirmation line goes to
// stdout; usage and error messages go to stderr.
func Run(args []string, stdout io.Writer, stderr io.Writer) int {
	opts, err := userconfig.ParseArgs(args)
	if errors.Is(err, flag.ErrHelp) {
		userconfig.PrintUsage(stdout)
		return ExitOK
	}
	var ue *userconfig.UsageError
	if errors.As(err, &ue) {
		fmt.Fprintln(stderr, ue.Message)
		userconfig.PrintUsage(stderr)
		return ExitFailure
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitFailure
	}

	setLevel(opts.Level)

	if err := deliver(opts); err != nil {
		fmt.Fprintf(stderr, "%v: %v\n", userconfig.ProgramName, err)
		return ExitFailure
	}

	fmt.Fprintln(stdout, Confirmation)
	return ExitOK
}

// deliver builds the message described by opts and sends it. The returned
// error is one of the email package's error types or a config error.
func deliver(opts *userconfig.Options) error {
	config, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Charset != "" {
		config.Files.Charset = opts.Charset
	}

	checked, err := config.CheckAndSetDefaults()
	if err != nil {
		return fmt.Errorf("problem validating your config: %w", err)
	}

	// Set up the relay before touching any files so bad settings fail
	// without side effects.
	relay, err := email.NewRelay(checked.Relay, email.Credentials{
		Username: opts.Request.Username,
		Password: opts.Request.Password,
	})
	if err != nil {
		return err
	}

	builder, err := email.NewBuilder(checked.Files)
	if err != nil {
		return err
	}

	msg, err := builder.Build(&opts.Request)
	if err != nil {
		return err
	}

	log.Debug().
		Str("relay", relay.Addr()).
		Str("from", msg.From).
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Msg("sending the message")

	if err := relay.Send(msg); err != nil {
		var te *email.TransportError
		if errors.As(err, &te) {
			log.Error().Err(te.Err).Str("phase", te.Op).Msg("the relay didn't accept the message")
		}
		return err
	}

	return nil
}

// loadConfig reads the YAML config at path. No path means every default.
func loadConfig(path string) (*userconfig.Meta, error) {
	if path == "" {
		return &userconfig.Meta{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open the config file: %w", err)
	}
	defer f.Close()

	m, err := userconfig.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("problem parsing your config: %w", err)
	}

	log.Debug().Str("configPath", path).Msg("loaded the config file")
	return m, nil
}

func setLevel(level string) {
	switch level {
	case "debug":
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "warn":
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
}
