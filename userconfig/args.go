package userconfig

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ptgott/gmailer/email"
	"github.com/rs/zerolog/log"
)

// ProgramName is used in usage output.
const ProgramName = "gmailer"

// UsageError means the command line is malformed or incomplete. The caller
// is expected to print the message followed by the usage.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// Options is a parsed and validated command line.
type Options struct {
	Request email.SendRequest
	// Path to an optional YAML config file, empty if not given
	ConfigPath string
	// Overrides the config file's charset when not empty
	Charset string
	// "info", "debug" or "warn"
	Level string
}

// optString is a string flag that remembers whether it was given at all, so
// that an explicitly empty value can be told apart from a missing one.
type optString struct {
	value string
	set   bool
}

func (o *optString) String() string {
	if o == nil {
		return ""
	}
	return o.value
}

func (o *optString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

// recipientList collects every --to value in the order given.
type recipientList []string

func (l *recipientList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *recipientList) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// optionDoc describes one option for binding and for usage output.
type optionDoc struct {
	long     string
	short    string
	arg      string
	help     string
	required bool
}

var optionDocs = []optionDoc{
	{long: "username", short: "u", arg: "address", help: "Gmail username", required: true},
	{long: "password", short: "p", arg: "password", help: "Gmail password", required: true},
	{long: "displayname", short: "n", arg: "name", help: "Gmail Display Name"},
	{long: "displayaddress", short: "a", arg: "address", help: "Gmail Display Address"},
	{long: "subject", short: "s", arg: "text", help: "Subject of message"},
	{long: "to", short: "t", arg: "address", help: "To addresses (repeatable)"},
	{long: "message", short: "m", arg: "text", help: "Message text"},
	{long: "messageFile", short: "mf", arg: "path", help: "File to be used as message text"},
	{long: "mimeFile", short: "f", arg: "path", help: "File containing a RFC 2047 MIME message"},
	{long: "config", arg: "path", help: "YAML file with relay and file settings"},
	{long: "charset", arg: "name", help: "Encoding of --messageFile (default utf-8)"},
	{long: "level", arg: "level", help: `log level: "info", "debug", or "warn"`},
}

// ParseArgs parses the process arguments (without the program name) into
// Options. Malformed or incomplete input yields a *UsageError; -h or -help
// yields flag.ErrHelp.
func ParseArgs(args []string) (*Options, error) {
	var (
		username, password            optString
		displayName, displayAddress   optString
		subject, message, messageFile optString
		mimeFile, configPath, charset optString
		level                         optString
		to                            recipientList
	)
	values := map[string]flag.Value{
		"username":       &username,
		"password":       &password,
		"displayname":    &displayName,
		"displayaddress": &displayAddress,
		"subject":        &subject,
		"to":             &to,
		"message":        &message,
		"messageFile":    &messageFile,
		"mimeFile":       &mimeFile,
		"config":         &configPath,
		"charset":        &charset,
		"level":          &level,
	}

	fs := flag.NewFlagSet(ProgramName, flag.ContinueOnError)
	// Errors and usage are reported by the caller
	fs.SetOutput(io.Discard)
	for _, d := range optionDocs {
		fs.Var(values[d.long], d.long, d.help)
		if d.short != "" {
			fs.Var(values[d.long], d.short, d.help)
		}
	}

	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, &UsageError{Message: err.Error()}
		}
		consumed := rest[:len(rest)-len(fs.Args())]
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}

		// "-t a@x.com b@x.com" names two recipients. Bare words are only
		// allowed right after a --to value.
		if !endsWithRecipient(consumed) {
			return nil, &UsageError{Message: fmt.Sprintf("unexpected argument %q", rest[0])}
		}
		for len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
			to.Set(rest[0])
			rest = rest[1:]
		}
	}

	var missing []string
	if username.value == "" {
		missing = append(missing, "--username (-u)")
	}
	if password.value == "" {
		missing = append(missing, "--password (-p)")
	}
	if len(missing) > 0 {
		return nil, &UsageError{
			Message: "The following options are required: " + strings.Join(missing, ", "),
		}
	}

	if mimeFile.set {
		if displayAddress.set ||
			displayName.set ||
			message.set ||
			messageFile.set ||
			subject.set ||
			len(to) > 0 {
			return nil, &UsageError{
				Message: "--mimeFile (-f) cannot be used with other message options.",
			}
		}
	} else if !message.set && !messageFile.set {
		return nil, &UsageError{
			Message: "One of --message (-m), --messageFile (-mf), or --mimeFile (-f) must be specified.",
		}
	} else {
		if len(to) == 0 {
			return nil, &UsageError{Message: "--to (-t) must be specified."}
		}
		if !subject.set {
			return nil, &UsageError{Message: "--subject (-s) must be specified."}
		}
	}

	req := email.SendRequest{
		Username:       username.value,
		Password:       password.value,
		DisplayName:    displayName.value,
		DisplayAddress: displayAddress.value,
		Subject:        subject.value,
		Recipients:     []string(to),
	}
	switch {
	case mimeFile.set:
		req.Source = email.BodySource{Kind: email.SourceMIME, Path: mimeFile.value}
	case messageFile.set:
		if message.set {
			log.Debug().Msg("both --message and --messageFile given, ignoring --message")
		}
		req.Source = email.BodySource{Kind: email.SourceFile, Path: messageFile.value}
	default:
		req.Source = email.BodySource{Kind: email.SourceText, Text: message.value}
	}

	lv := level.value
	if lv == "" {
		lv = "info"
	}

	return &Options{
		Request:    req,
		ConfigPath: configPath.value,
		Charset:    charset.value,
		Level:      lv,
	}, nil
}

// endsWithRecipient reports whether the last flag in consumed was --to, in
// either "-t value" or "-t=value" form.
func endsWithRecipient(consumed []string) bool {
	n := len(consumed)
	if n == 0 || consumed[n-1] == "--" {
		return false
	}
	if name, _, ok := strings.Cut(flagName(consumed[n-1]), "="); ok && isToFlag(name) {
		return true
	}
	return n >= 2 &&
		!strings.Contains(consumed[n-2], "=") &&
		isToFlag(flagName(consumed[n-2]))
}

// flagName strips the leading dashes from a flag token. Values yield "".
func flagName(tok string) string {
	if !strings.HasPrefix(tok, "-") {
		return ""
	}
	return strings.TrimPrefix(strings.TrimPrefix(tok, "-"), "-")
}

func isToFlag(name string) bool {
	return name == "to" || name == "t"
}

// PrintUsage writes the option summary to w. Required options are marked
// with an asterisk.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %v [options]\n  Options:\n", ProgramName)
	for _, d := range optionDocs {
		mark := " "
		if d.required {
			mark = "*"
		}
		names := "--" + d.long
		if d.short != "" {
			names += ", -" + d.short
		}
		fmt.Fprintf(w, "  %v %v <%v>\n", mark, names, d.arg)
		fmt.Fprintf(w, "        %v\n", d.help)
	}
}
