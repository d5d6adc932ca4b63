package smtptest

// Server contains state information for an SMTP relay used by tests. The
// relay should be able to return the payloads of messages sent to it during
// the test (or test suite). It's meant to start during a test and stop right
// after.
type Server interface {
	// Start runs the server and returns an error if this fails. Retry
	// behavior is left to the caller.
	Start() error

	// Close terminates the server and any required resources. While this is
	// designed not to return an error so it's easier to use with defer,
	// implementations should log failures to close so the test operator can
	// chase down rogue servers.
	Close()

	// RetrieveEmails returns the payloads of all email messages sent to the
	// server after time t in Unix epoch nanoseconds.
	RetrieveEmails(t int64) ([]string, error)

	// Address returns the host:port of the server.
	Address() string
}

var _ Server = &InProcessServer{}
