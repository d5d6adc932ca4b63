package email

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	// Gmail's submission endpoint. STARTTLS is mandatory here.
	DefaultRelayHost = "smtp.gmail.com"
	DefaultRelayPort = 587
	DefaultCharset   = "utf-8"

	defaultTimeout = time.Duration(10) * time.Second
	defaultMaxSize = 25 * units.MiB // Gmail's own message size limit
	maxPortNumber  = 65535
)

// RelaySettings represents relay options provided by the user. The zero value
// plus CheckAndSetDefaults points at Gmail.
type RelaySettings struct {
	Host      string
	Port      int
	LocalName string // name sent with EHLO, "localhost" if empty
	Timeout   time.Duration
	// PEM-encoded CA bundle used to verify the relay instead of the system
	// pool. Mostly useful for testing against a self-signed relay.
	CAFile             string
	InsecureSkipVerify bool
}

// UnmarshalYAML parses the "relay" section of a user-provided YAML
// configuration, returning any parsing errors.
func (rs *RelaySettings) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the relay config: %v", err)
	}

	rs.Host = v["host"]
	rs.LocalName = v["localName"]
	rs.CAFile = v["caFile"]

	if p, ok := v["port"]; ok {
		pn, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("can't parse the relay port %q as an integer", p)
		}
		rs.Port = pn
	}

	if d, ok := v["timeout"]; ok {
		pd, err := time.ParseDuration(d)
		if err != nil {
			return fmt.Errorf(
				"can't parse the relay timeout as a duration: %v",
				err,
			)
		}
		rs.Timeout = pd
	}

	if s, ok := v["insecureSkipVerify"]; ok {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("insecureSkipVerify must be true or false, got %q", s)
		}
		rs.InsecureSkipVerify = b
	}

	return nil
}

// CheckAndSetDefaults validates rs and either returns a copy of rs with
// default settings applied or returns an error due to an invalid
// configuration
func (rs *RelaySettings) CheckAndSetDefaults() (RelaySettings, error) {
	c := *rs

	if c.Host == "" {
		c.Host = DefaultRelayHost
	}
	if strings.ContainsAny(c.Host, ":/ ") {
		return RelaySettings{}, fmt.Errorf(
			"the relay host %q must be a bare hostname without a scheme or port",
			c.Host,
		)
	}

	if c.Port == 0 {
		c.Port = DefaultRelayPort
	}
	if c.Port < 0 || c.Port > maxPortNumber {
		return RelaySettings{}, fmt.Errorf("the relay port %v is out of range", c.Port)
	}

	if c.Timeout < 0 {
		return RelaySettings{}, errors.New("the relay timeout can't be negative")
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	return c, nil
}

// TLSConfig returns the client TLS configuration used for STARTTLS.
func (rs *RelaySettings) TLSConfig() (*tls.Config, error) {
	tlsc := &tls.Config{
		ServerName:         rs.Host,
		InsecureSkipVerify: rs.InsecureSkipVerify,
	}

	if rs.CAFile == "" {
		return tlsc, nil
	}

	pem, err := os.ReadFile(rs.CAFile)
	if err != nil {
		return nil, fmt.Errorf("can't read the relay CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no PEM certificates found in %q", rs.CAFile)
	}
	tlsc.RootCAs = pool

	return tlsc, nil
}

// FileSettings controls how body and MIME files are read.
type FileSettings struct {
	// Files larger than this are refused before they're read
	MaxSize int64
	// WHATWG label of the encoding body files are written in
	Charset string
}

// UnmarshalYAML parses the "files" section of a user-provided YAML
// configuration.
func (fs *FileSettings) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the files config: %v", err)
	}

	if s, ok := v["maxSize"]; ok {
		n, err := units.RAMInBytes(s)
		if err != nil {
			return fmt.Errorf("can't parse the maximum file size: %v", err)
		}
		fs.MaxSize = n
	}

	fs.Charset = v["charset"]

	return nil
}

// CheckAndSetDefaults validates fs and either returns a copy of fs with
// default settings applied or returns an error due to an invalid
// configuration
func (fs *FileSettings) CheckAndSetDefaults() (FileSettings, error) {
	c := *fs

	if c.MaxSize < 0 {
		return FileSettings{}, errors.New("the maximum file size can't be negative")
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaultMaxSize
	}

	if c.Charset == "" {
		c.Charset = DefaultCharset
	}
	if _, err := lookupCharset(c.Charset); err != nil {
		return FileSettings{}, err
	}

	return c, nil
}

func lookupCharset(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %v", name, err)
	}
	return enc, nil
}
