package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"os"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/idna"
	"golang.org/x/text/encoding"
	gomail "gopkg.in/mail.v2"
)

// Builder turns a SendRequest into a Message. Use NewBuilder so the file
// settings get validated and defaulted.
type Builder struct {
	files   FileSettings
	charset encoding.Encoding
	now     func() time.Time
}

// NewBuilder validates fs and returns a Builder that reads body and MIME
// files according to it.
func NewBuilder(fs FileSettings) (*Builder, error) {
	c, err := fs.CheckAndSetDefaults()
	if err != nil {
		return nil, err
	}

	enc, err := lookupCharset(c.Charset)
	if err != nil {
		return nil, err
	}

	return &Builder{
		files:   c,
		charset: enc,
		now:     time.Now,
	}, nil
}

// Build validates req and produces the single message it describes, either
// assembled from its fields or loaded from its MIME file.
func (b *Builder) Build(req *SendRequest) (*Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.Source.Kind == SourceMIME {
		return b.buildRaw(req)
	}
	return b.buildFromFields(req)
}

func (b *Builder) buildFromFields(req *SendRequest) (*Message, error) {
	sender, err := resolveSender(req)
	if err != nil {
		return nil, err
	}
	from, err := envelopeAddress("From", sender)
	if err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", sender.Address, sender.Name)

	to := make([]string, 0, len(req.Recipients))
	toHeader := make([]string, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		a, err := parseAddress("To", r)
		if err != nil {
			return nil, err
		}
		ea, err := envelopeAddress("To", a)
		if err != nil {
			return nil, err
		}
		to = append(to, ea)
		toHeader = append(toHeader, m.FormatAddress(a.Address, a.Name))
	}
	m.SetHeader("To", toHeader...)
	m.SetHeader("Subject", req.Subject)
	m.SetDateHeader("Date", b.now())
	m.SetHeader("Message-ID", fmt.Sprintf("<%v@%v>", uuid.NewString(), domainOf(from)))

	body := req.Source.Text
	if req.Source.Kind == SourceFile {
		raw, err := b.readFile(req.Source.Path)
		if err != nil {
			return nil, err
		}
		body, err = b.decode(raw)
		if err != nil {
			return nil, &FileError{Path: req.Source.Path, Err: err}
		}
	}
	m.SetBody("text/plain", body)

	log.Debug().
		Str("from", from).
		Int("recipients", len(to)).
		Str("source", req.Source.Kind.String()).
		Msg("built message from fields")

	return &Message{
		From:    from,
		To:      to,
		Sender:  *sender,
		Subject: req.Subject,
		Body:    body,
		payload: m,
	}, nil
}

func (b *Builder) buildRaw(req *SendRequest) (*Message, error) {
	raw, err := b.readFile(req.Source.Path)
	if err != nil {
		return nil, err
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, &FileError{
			Path: req.Source.Path,
			Err:  fmt.Errorf("not a MIME message: %w", err),
		}
	}
	h := parsed.Header

	var sender *mail.Address
	for _, f := range []string{"From", "Sender"} {
		if h.Get(f) == "" {
			continue
		}
		l, err := h.AddressList(f)
		if err != nil {
			return nil, &AddressError{Field: f, Value: h.Get(f), Err: err}
		}
		if len(l) > 0 {
			sender = l[0]
			break
		}
	}
	if sender == nil {
		sender, err = parseAddress("From", req.Username)
		if err != nil {
			return nil, err
		}
	}
	from, err := envelopeAddress("From", sender)
	if err != nil {
		return nil, err
	}

	var to []string
	for _, f := range []string{"To", "Cc", "Bcc"} {
		if h.Get(f) == "" {
			continue
		}
		l, err := h.AddressList(f)
		if err != nil {
			return nil, &AddressError{Field: f, Value: h.Get(f), Err: err}
		}
		for _, a := range l {
			ea, err := envelopeAddress(f, a)
			if err != nil {
				return nil, err
			}
			to = append(to, ea)
		}
	}
	if len(to) == 0 {
		return nil, &AddressError{
			Field: "To",
			Err:   errors.New("the MIME message has no To, Cc or Bcc recipients"),
		}
	}

	subject, err := new(mime.WordDecoder).DecodeHeader(h.Get("Subject"))
	if err != nil {
		// Only used for logging, so fall back to the encoded form.
		subject = h.Get("Subject")
	}

	log.Debug().
		Str("from", from).
		Int("recipients", len(to)).
		Int("bytes", len(raw)).
		Msg("loaded raw MIME message")

	return &Message{
		From:    from,
		To:      to,
		Sender:  *sender,
		Subject: subject,
		payload: rawMessage(stripHeader(raw, "Bcc")),
	}, nil
}

// resolveSender picks the From identity: the display address if given, else
// the username, with the display name attached when present.
func resolveSender(req *SendRequest) (*mail.Address, error) {
	addr := req.Username
	field := "username"
	if req.DisplayAddress != "" {
		addr = req.DisplayAddress
		field = "display"
	}

	a, err := parseAddress(field, addr)
	if err != nil {
		return nil, err
	}
	if req.DisplayName != "" {
		a.Name = req.DisplayName
	}
	return a, nil
}

// parseAddress parses exactly one RFC 5322 address, with or without a
// display name. Groups and address lists are rejected.
func parseAddress(field, value string) (*mail.Address, error) {
	if strings.TrimSpace(value) == "" {
		return nil, &AddressError{Field: field, Value: value, Err: errors.New("empty address")}
	}
	a, err := mail.ParseAddress(value)
	if err != nil {
		return nil, &AddressError{Field: field, Value: value, Err: err}
	}
	return a, nil
}

// envelopeAddress returns the SMTP envelope form of a: the bare address with
// its domain converted to ASCII.
func envelopeAddress(field string, a *mail.Address) (string, error) {
	i := strings.LastIndexByte(a.Address, '@')
	if i < 0 {
		return a.Address, nil
	}
	local, domain := a.Address[:i], a.Address[i+1:]
	// Domain literals like [192.0.2.1] have nothing to convert.
	if strings.HasPrefix(domain, "[") {
		return a.Address, nil
	}

	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", &AddressError{Field: field, Value: a.Address, Err: err}
	}
	return local + "@" + ascii, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		return addr[i+1:]
	}
	return "localhost"
}

// readFile reads the whole file at path, refusing anything over the
// configured size limit. The file is closed before returning.
func (b *Builder) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	tooBig := &FileError{
		Path: path,
		Err: fmt.Errorf(
			"file is larger than the %v limit",
			units.BytesSize(float64(b.files.MaxSize)),
		),
	}

	if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() && fi.Size() > b.files.MaxSize {
		return nil, tooBig
	}

	// Read one byte past the limit so we can tell a file that's exactly at
	// the limit from one that isn't a regular file and keeps going.
	buf, err := io.ReadAll(io.LimitReader(f, b.files.MaxSize+1))
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	if int64(len(buf)) > b.files.MaxSize {
		return nil, tooBig
	}

	return buf, nil
}

// decode converts file bytes in the configured charset into UTF-8 text.
func (b *Builder) decode(raw []byte) (string, error) {
	out, err := b.charset.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("can't decode the file as %v: %w", b.files.Charset, err)
	}
	return string(out), nil
}
