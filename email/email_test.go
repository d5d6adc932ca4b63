package email

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestUnmarshalYAML(t *testing.T) {
	testCases := []struct {
		description   string
		input         string
		shouldBeError bool
	}{
		{
			description: "valid case",
			input: `host: smtp.example.com
port: 2525
localName: client.example.com
timeout: 30s
caFile: /etc/ssl/relay.pem
insecureSkipVerify: false
`,
			shouldBeError: false,
		},
		{
			description:   "empty section",
			input:         `{}`,
			shouldBeError: false,
		},
		{
			description: "port isn't a number",
			input: `host: smtp.example.com
port: submission
`,
			shouldBeError: true,
		},
		{
			description: "timeout isn't a duration",
			input: `host: smtp.example.com
timeout: forever
`,
			shouldBeError: true,
		},
		{
			description:   "insecureSkipVerify isn't a bool",
			input:         `insecureSkipVerify: sometimes`,
			shouldBeError: true,
		},
		{
			description:   "not a map[string]string",
			input:         `[]`,
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			var rs RelaySettings
			dec := yaml.NewDecoder(bytes.NewBuffer([]byte(tc.input)))
			err := dec.Decode(&rs)
			if (err != nil) != tc.shouldBeError {
				t.Errorf(
					"%v: unexpected error status--wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
		})
	}
}

func TestRelaySettingsDefaults(t *testing.T) {
	var rs RelaySettings
	c, err := rs.CheckAndSetDefaults()
	require.NoError(t, err)

	assert.Equal(t, "smtp.gmail.com", c.Host)
	assert.Equal(t, 587, c.Port)
	assert.Equal(t, time.Duration(10)*time.Second, c.Timeout)
	// The receiver stays untouched
	assert.Empty(t, rs.Host)
}

func TestRelaySettingsInvalid(t *testing.T) {
	testCases := []struct {
		description string
		settings    RelaySettings
	}{
		{description: "host with a port", settings: RelaySettings{Host: "smtp.gmail.com:587"}},
		{description: "host with a scheme", settings: RelaySettings{Host: "smtp://smtp.gmail.com"}},
		{description: "port out of range", settings: RelaySettings{Port: 70000}},
		{description: "negative port", settings: RelaySettings{Port: -1}},
		{description: "negative timeout", settings: RelaySettings{Timeout: -time.Second}},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			_, err := tc.settings.CheckAndSetDefaults()
			assert.Error(t, err)
		})
	}
}

func TestTLSConfig(t *testing.T) {
	rs := RelaySettings{Host: "smtp.example.com", CAFile: t.TempDir() + "/missing.pem"}
	_, err := rs.TLSConfig()
	assert.Error(t, err, "a missing CA file should be an error")

	rs.CAFile = ""
	tlsc, err := rs.TLSConfig()
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", tlsc.ServerName)
	assert.Nil(t, tlsc.RootCAs)
	assert.False(t, tlsc.InsecureSkipVerify)
}

func TestFileSettings(t *testing.T) {
	var fs FileSettings
	err := yaml.Unmarshal([]byte("maxSize: 1MiB\ncharset: latin1\n"), &fs)
	require.NoError(t, err)
	assert.EqualValues(t, 1024*1024, fs.MaxSize)

	c, err := fs.CheckAndSetDefaults()
	require.NoError(t, err)
	assert.Equal(t, "latin1", c.Charset)

	c, err = (&FileSettings{}).CheckAndSetDefaults()
	require.NoError(t, err)
	assert.EqualValues(t, 25*1024*1024, c.MaxSize)
	assert.Equal(t, "utf-8", c.Charset)

	_, err = (&FileSettings{Charset: "klingon"}).CheckAndSetDefaults()
	assert.Error(t, err)

	err = yaml.Unmarshal([]byte("maxSize: lots\n"), &fs)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		description   string
		req           SendRequest
		shouldBeError bool
	}{
		{
			description: "field mode with text",
			req: SendRequest{
				Username:   "me@x.com",
				Password:   "secret",
				Subject:    "Hi",
				Recipients: []string{"a@y.com"},
				Source:     BodySource{Kind: SourceText, Text: "hello"},
			},
		},
		{
			description: "mime mode",
			req: SendRequest{
				Username: "me@x.com",
				Password: "secret",
				Source:   BodySource{Kind: SourceMIME, Path: "raw.mime"},
			},
		},
		{
			description: "no password",
			req: SendRequest{
				Username:   "me@x.com",
				Recipients: []string{"a@y.com"},
			},
			shouldBeError: true,
		},
		{
			description: "no recipients in field mode",
			req: SendRequest{
				Username: "me@x.com",
				Password: "secret",
				Source:   BodySource{Kind: SourceText, Text: "hello"},
			},
			shouldBeError: true,
		},
		{
			description: "file mode without a path",
			req: SendRequest{
				Username:   "me@x.com",
				Password:   "secret",
				Recipients: []string{"a@y.com"},
				Source:     BodySource{Kind: SourceFile},
			},
			shouldBeError: true,
		},
		{
			description: "mime mode with a subject",
			req: SendRequest{
				Username: "me@x.com",
				Password: "secret",
				Subject:  "Hi",
				Source:   BodySource{Kind: SourceMIME, Path: "raw.mime"},
			},
			shouldBeError: true,
		},
		{
			description: "mime mode with recipients",
			req: SendRequest{
				Username:   "me@x.com",
				Password:   "secret",
				Recipients: []string{"a@y.com"},
				Source:     BodySource{Kind: SourceMIME, Path: "raw.mime"},
			},
			shouldBeError: true,
		},
		{
			description: "unknown source",
			req: SendRequest{
				Username:   "me@x.com",
				Password:   "secret",
				Recipients: []string{"a@y.com"},
				Source:     BodySource{Kind: SourceKind(42)},
			},
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			err := tc.req.Validate()
			if (err != nil) != tc.shouldBeError {
				t.Fatalf("wanted error: %v, got %v", tc.shouldBeError, err)
			}
			if err != nil {
				var re *RequestError
				assert.ErrorAs(t, err, &re)
			}
		})
	}
}
