package e2e

import (
	"bytes"
	"net"
	"path/filepath"
	"testing"

	"github.com/ptgott/gmailer/send"
	"github.com/ptgott/gmailer/smtptest"
)

// testEnvironmentConfig exposes options that should be available and
// perhaps changeable when spinning up a test environment. While they
// may not vary between tests, they shouldn't be buried inside
// functions.
type testEnvironmentConfig struct {
	noTLS   bool   // run the relay without STARTTLS
	maxSize string // files.maxSize, default if empty
	charset string // files.charset, default if empty
}

// testEnvironment manages all dependencies required to simulate a "real"
// environment and run the e2e tests. Callers should create this via
// startTestEnvironment.
type testEnvironment struct {
	SMTPServer  *smtptest.InProcessServer
	tempDirPath string
	configPath  string
}

// startTestEnvironment spins up an in-process relay and writes a config
// file pointing at it. Everything is torn down when the test ends.
func startTestEnvironment(t *testing.T, c testEnvironmentConfig) *testEnvironment {
	t.Helper()
	te := &testEnvironment{
		tempDirPath: t.TempDir(),
	}

	// The CA file is still written for a relay without TLS so the client
	// config stays the same; only the relay changes.
	key, cert, err := smtptest.GenerateTLSFiles(t)
	if err != nil {
		t.Fatalf("can't generate TLS files: %v", err)
	}
	if c.noTLS {
		te.SMTPServer = smtptest.NewInProcessServer("", "")
	} else {
		te.SMTPServer = smtptest.NewInProcessServer(key, cert)
	}
	go te.SMTPServer.Start()
	t.Cleanup(te.tearDown)

	host, port, err := net.SplitHostPort(te.SMTPServer.Address())
	if err != nil {
		t.Fatalf("unexpected relay address: %v", err)
	}

	te.configPath = filepath.Join(te.tempDirPath, "gmailer.yaml")
	err = createAppConfig(te.configPath, appConfigOptions{
		RelayHost: host,
		RelayPort: port,
		CAFile:    cert,
		MaxSize:   c.maxSize,
		Charset:   c.charset,
	})
	if err != nil {
		t.Fatalf("can't create the app config: %v", err)
	}

	return te
}

// tearDown returns the testEnvironment to its state prior to start. Designed
// to call with defer or t.Cleanup
func (te *testEnvironment) tearDown() {
	if te.SMTPServer != nil {
		te.SMTPServer.Close()
	}
}

// path returns name inside the environment's temporary directory.
func (te *testEnvironment) path(name string) string {
	return filepath.Join(te.tempDirPath, name)
}

// runApp runs the command with the environment's config and the relay's
// credentials prepended to args, returning the exit status and output.
func (te *testEnvironment) runApp(args ...string) (code int, stdout string, stderr string) {
	full := append([]string{
		"--config", te.configPath,
		"-u", smtptest.Username,
		"-p", smtptest.Password,
	}, args...)

	var o, e bytes.Buffer
	code = send.Run(full, &o, &e)
	return code, o.String(), e.String()
}
