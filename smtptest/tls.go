package smtptest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/flashmob/go-guerrilla/tests/testcert"
)

// Host is the address the in-process server listens on and the name its
// certificate is issued for.
const Host = "127.0.0.1"

// GenerateTLSFiles writes a TLS key and certificate to a temporary test
// directory that is removed after the test runs. It returns the file paths
// of the key and certificate. The certificate is a root cert, so the cert
// path doubles as a CA file for clients.
func GenerateTLSFiles(t *testing.T) (keyPath string, certPath string, err error) {
	d := t.TempDir() + string(filepath.Separator)
	err = testcert.GenerateCert(
		Host,
		"",                         // defaults to now
		time.Duration(1)*time.Hour, // the test suite won't run for this long
		true,                       // is a CA cert
		2048,                       // usually seen in online tutorials
		"",                         // using the default ecdsa curve,
		d,
	)

	if err != nil {
		return
	}

	// These path names are hardcoded into testcert.GenerateCert
	keyPath = d + Host + ".key.pem"
	certPath = d + Host + ".cert.pem"

	return
}
