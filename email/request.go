package email

import "strings"

// SourceKind names where the body of a message comes from. Exactly one
// source is active for any request.
type SourceKind int

const (
	// SourceText uses literal text from the command line as the body.
	SourceText SourceKind = iota
	// SourceFile reads the body text from a file.
	SourceFile
	// SourceMIME reads an entire pre-formed message from a file.
	SourceMIME
)

func (k SourceKind) String() string {
	switch k {
	case SourceText:
		return "text"
	case SourceFile:
		return "file"
	case SourceMIME:
		return "mime"
	default:
		return "unknown"
	}
}

// BodySource is the single active body source of a SendRequest. Text is
// only meaningful for SourceText, Path for SourceFile and SourceMIME.
type BodySource struct {
	Kind SourceKind
	Text string
	Path string
}

// SendRequest is everything one run needs to build and deliver a message.
// It lives for a single process run and isn't mutated once validated.
type SendRequest struct {
	Username string
	Password string

	// Optional sender identity override
	DisplayName    string
	DisplayAddress string

	Subject    string
	Recipients []string
	Source     BodySource
}

// Validate checks the invariants a request must hold before it reaches the
// Builder. The command line parser already enforces these with friendlier
// messages, so a failure here points at a request built by hand.
func (r *SendRequest) Validate() error {
	if r.Username == "" || r.Password == "" {
		return &RequestError{Reason: "must supply a username and password"}
	}

	switch r.Source.Kind {
	case SourceMIME:
		if r.Source.Path == "" {
			return &RequestError{Reason: "a MIME source needs a file path"}
		}
		var shaping []string
		if r.DisplayName != "" {
			shaping = append(shaping, "display name")
		}
		if r.DisplayAddress != "" {
			shaping = append(shaping, "display address")
		}
		if r.Subject != "" {
			shaping = append(shaping, "subject")
		}
		if len(r.Recipients) > 0 {
			shaping = append(shaping, "recipients")
		}
		if r.Source.Text != "" {
			shaping = append(shaping, "message text")
		}
		if len(shaping) > 0 {
			return &RequestError{
				Reason: "a MIME source can't be combined with " + strings.Join(shaping, ", "),
			}
		}
	case SourceText, SourceFile:
		if r.Source.Kind == SourceFile && r.Source.Path == "" {
			return &RequestError{Reason: "a file source needs a file path"}
		}
		if len(r.Recipients) == 0 {
			return &RequestError{Reason: "must supply at least one recipient"}
		}
	default:
		return &RequestError{Reason: "unknown body source " + r.Source.Kind.String()}
	}

	return nil
}
