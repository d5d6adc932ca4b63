package smtptest

import (
	"io"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// ParseEmail parses a payload returned by RetrieveEmails into its header and
// decoded text body. Only single-part bodies are decoded, which is all the
// client ever sends when building from fields. The line break the client
// adds to terminate DATA is trimmed from the body.
func ParseEmail(payload string) (mail.Header, string, error) {
	m, err := mail.ReadMessage(strings.NewReader(payload))
	if err != nil {
		return nil, "", err
	}

	var r io.Reader = m.Body
	switch strings.ToLower(m.Header.Get("Content-Transfer-Encoding")) {
	case "quoted-printable":
		r = quotedprintable.NewReader(m.Body)
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}

	body := strings.TrimSuffix(string(b), "\n")
	return m.Header, strings.TrimSuffix(body, "\r"), nil
}

// DecodeHeader returns the named header field with any RFC 2047 encoded
// words decoded.
func DecodeHeader(h mail.Header, field string) (string, error) {
	return new(mime.WordDecoder).DecodeHeader(h.Get(field))
}
