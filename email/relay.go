package email

import (
	"errors"
	"net"
	"strconv"

	"github.com/rs/zerolog/log"
	gomail "gopkg.in/mail.v2"
)

// Credentials authenticate against the relay. They're handed to NewRelay
// directly rather than looked up when the server asks for them.
type Credentials struct {
	Username string
	Password string
}

// Relay delivers messages to an SMTP submission relay over an authenticated,
// STARTTLS-upgraded connection. Each call to Send opens and closes its own
// connection.
type Relay struct {
	dialer *gomail.Dialer
	addr   string
}

// NewRelay validates the relay settings and credentials and returns a Relay
// ready to send. No network I/O happens here.
func NewRelay(rs RelaySettings, creds Credentials) (*Relay, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.New("must supply a username and password")
	}

	c, err := rs.CheckAndSetDefaults()
	if err != nil {
		return nil, err
	}

	tlsc, err := c.TLSConfig()
	if err != nil {
		return nil, err
	}

	// NewDialer only turns on implicit TLS for port 465. Everywhere else the
	// connection must be upgraded with STARTTLS before AUTH.
	d := gomail.NewDialer(c.Host, c.Port, creds.Username, creds.Password)
	d.TLSConfig = tlsc
	d.StartTLSPolicy = gomail.MandatoryStartTLS
	d.LocalName = c.LocalName
	d.Timeout = c.Timeout
	d.RetryFailure = false

	return &Relay{
		dialer: d,
		addr:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
	}, nil
}

// Addr returns the host:port of the relay.
func (r *Relay) Addr() string {
	return r.addr
}

// Send delivers m. A nil error means the relay accepted the message; there
// are no retries.
func (r *Relay) Send(m *Message) error {
	if len(m.To) == 0 {
		return &TransportError{Op: "send", Err: errors.New("no recipients")}
	}

	log.Debug().Str("relay", r.addr).Msg("connecting to the relay")
	s, err := r.dialer.Dial()
	if err != nil {
		return &TransportError{Op: "dial " + r.addr, Err: err}
	}

	if err := s.Send(m.From, m.To, m); err != nil {
		s.Close()
		return &TransportError{Op: "send", Err: err}
	}

	// The relay has the message at this point, so a failed QUIT isn't a
	// delivery failure.
	if err := s.Close(); err != nil {
		log.Warn().Err(err).Str("relay", r.addr).Msg("couldn't close the relay connection cleanly")
	}

	log.Info().
		Str("relay", r.addr).
		Str("from", m.From).
		Int("recipients", len(m.To)).
		Msg("relay accepted the message")

	return nil
}
