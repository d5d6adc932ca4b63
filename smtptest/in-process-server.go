package smtptest

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// Credentials the in-process server accepts. Anything else fails AUTH.
const (
	Username = "me@example.com"
	Password = "secret"
)

// Envelope is one message received by the server: the SMTP envelope plus the
// DATA payload, and the time it was received so tests can inspect messages
// sent after a timestamp.
type Envelope struct {
	From    string
	To      []string
	Data    string
	created time.Time
}

// Backend implements smtp.Backend. It's a thin authentication wrapper
// for an InMemoryEmailStore.
type Backend struct {
	*InMemoryEmailStore
}

// Login implements smtp.Backend. Only the Username/Password pair is
// accepted so tests can exercise rejected credentials.
func (be *Backend) Login(_ *smtp.ConnectionState, username string, password string) (smtp.Session, error) {
	if username == Username && password == Password {
		return &session{store: be.InMemoryEmailStore}, nil
	}
	return nil, errors.New("invalid username or password")
}

// AnonymousLogin implements smtp.Backend. Not supported since we want to
// enforce AUTH.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	return nil, smtp.ErrAuthUnsupported
}

// session implements smtp.Session for one authenticated connection,
// collecting the envelope until DATA completes.
type session struct {
	store *InMemoryEmailStore
	from  string
	to    []string
}

// Reset implements smtp.Session.
func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

// Logout implements smtp.Session. No-op here.
func (s *session) Logout() error { return nil }

// Mail implements smtp.Session.
func (s *session) Mail(from string, _ smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt implements smtp.Session. Addresses in the reject.test domain are
// refused so tests can exercise a recipient rejected by the server.
func (s *session) Rcpt(to string) error {
	if strings.HasSuffix(to, "@reject.test") {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "No such user here",
		}
	}
	s.to = append(s.to, to)
	return nil
}

// Data implements smtp.Session. Stores the envelope and message in memory
// for retrieval at the end of the test.
func (s *session) Data(r io.Reader) error {
	// doubtful we'll get an email this big, but we need a limit
	var maxEmailSize int64 = 100 * units.MiB
	buf, err := io.ReadAll(io.LimitReader(r, maxEmailSize))
	if err != nil {
		return err
	}

	s.store.saveEmail(Envelope{
		From: s.from,
		To:   append([]string(nil), s.to...),
		Data: string(buf),
	})
	return nil
}

// InMemoryEmailStore retains received messages in memory for comparison
// against a test's expected output. Goroutine safe, since every connection
// gets its own goroutine on the server.
type InMemoryEmailStore struct {
	mu       *sync.Mutex
	messages []Envelope
}

// InProcessServer is an SMTP relay that runs in the same process as the
// test suite, letting us inspect sent emails. You must initialize this
// via NewInProcessServer
type InProcessServer struct {
	*smtp.Server
	*InMemoryEmailStore
	listener net.Listener
}

// NewInProcessServer creates an InProcessServer listening on a random
// loopback port and storing incoming messages in memory. With a key and cert
// path the server offers STARTTLS; with empty paths it offers no TLS at all,
// which a client that insists on STARTTLS must refuse.
func NewInProcessServer(keypath string, certpath string) *InProcessServer {
	is := &InMemoryEmailStore{
		mu:       &sync.Mutex{},
		messages: []Envelope{},
	}

	srv := smtp.NewServer(&Backend{
		is,
	})

	srv.Domain = "localhost"
	srv.AllowInsecureAuth = false // need TLS before AUTH here
	srv.AuthDisabled = false      // need AUTH here
	srv.ReadTimeout = time.Duration(10) * time.Second
	srv.WriteTimeout = time.Duration(10) * time.Second
	// Strict enforces <address> syntax in MAIL and RCPT:
	// https://github.com/emersion/go-smtp/blob/f92bf7f1a25777bcdaa28a142b1cd1a54b74c8f4/conn.go#L321-L325
	srv.Strict = true

	if keypath != "" && certpath != "" {
		cert, err := tls.LoadX509KeyPair(certpath, keypath)

		// No way to carry on without a cert, so we panic. We're in a test
		// suite, so this should be fine.
		if err != nil {
			panic(err)
		}

		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	srv.Addr = l.Addr().String()

	return &InProcessServer{
		Server:             srv,
		InMemoryEmailStore: is,
		listener:           l,
	}
}

// saveEmail stores the envelope in memory along with a timestamp created
// just prior to saving
func (es *InMemoryEmailStore) saveEmail(e Envelope) {
	es.mu.Lock()
	defer es.mu.Unlock()

	e.created = time.Now()
	es.messages = append(es.messages, e)
}

// Start starts the test server. Blocking.
func (is *InProcessServer) Start() error {
	// Not using ServeTLS--the client should upgrade the connection to TLS
	return is.Server.Serve(is.listener)
}

// Close shuts down the test server daemon. You must initialize a new
// InProcessServer instead of restarting this one.
func (is *InProcessServer) Close() {
	is.Server.Close()
	// Serve may not have picked up the listener yet
	is.listener.Close()
}

// Envelopes returns every message received after epoch nanoseconds t.
func (es *InMemoryEmailStore) Envelopes(t int64) []Envelope {
	es.mu.Lock()
	defer es.mu.Unlock()

	r := make([]Envelope, 0, len(es.messages))
	for _, m := range es.messages {
		if m.created.UnixNano() >= t {
			r = append(r, m)
		}
	}
	return r
}

// RetrieveEmails returns a slice of all message payloads (as strings)
// sent after epoch nanoseconds t
// Satisfies smtptest.Server but isn't expected to return an error.
func (es *InMemoryEmailStore) RetrieveEmails(t int64) ([]string, error) {
	envs := es.Envelopes(t)
	r := make([]string, 0, len(envs))
	for _, e := range envs {
		r = append(r, e.Data)
	}
	return r, nil
}

// Address returns the host:port of the test SMTP server.
func (is *InProcessServer) Address() string {
	return is.listener.Addr().String()
}
