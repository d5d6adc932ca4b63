package email

import (
	"bufio"
	"bytes"
	"io"
	"net/mail"
	"strings"
)

// Message is a single outbound message together with its SMTP envelope.
// Build one with a Builder.
type Message struct {
	// Envelope sender (MAIL FROM), with an ASCII domain
	From string
	// Envelope recipients (RCPT TO) in the order they were given
	To []string

	// Sender is the resolved From identity. For raw MIME documents it's the
	// first From (or Sender) address in the header.
	Sender  mail.Address
	Subject string
	// Decoded body text. Empty for raw MIME documents, whose body is never
	// interpreted.
	Body string

	payload io.WriterTo
}

// WriteTo writes the RFC 5322 document, headers and body, to w. It satisfies
// io.WriterTo so the relay can stream the message into the DATA command.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	return m.payload.WriteTo(w)
}

// rawMessage is a pre-formed document sent as-is.
type rawMessage []byte

func (r rawMessage) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r)
	return int64(n), err
}

// stripHeader removes every occurrence of the named header field, including
// folded continuation lines, from the header block of doc. The body is left
// byte-for-byte intact.
func stripHeader(doc []byte, name string) []byte {
	end := headerEnd(doc)
	prefix := strings.ToLower(name) + ":"

	var out bytes.Buffer
	out.Grow(len(doc))

	sc := bufio.NewScanner(bytes.NewReader(doc[:end]))
	sc.Buffer(make([]byte, 0, 4096), len(doc)+1)
	sc.Split(scanLinesKeepEOL)

	dropping := false
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if !dropping {
				out.Write(line)
			}
			continue
		}
		dropping = strings.HasPrefix(strings.ToLower(string(line)), prefix)
		if !dropping {
			out.Write(line)
		}
	}

	out.Write(doc[end:])
	return out.Bytes()
}

// headerEnd returns the offset of the blank line that ends the header block,
// or len(doc) if the document is all header.
func headerEnd(doc []byte) int {
	crlf := bytes.Index(doc, []byte("\r\n\r\n"))
	lf := bytes.Index(doc, []byte("\n\n"))

	switch {
	case crlf == -1 && lf == -1:
		return len(doc)
	case crlf == -1:
		return lf + 1
	case lf == -1 || crlf < lf:
		return crlf + 2
	default:
		return lf + 1
	}
}

// scanLinesKeepEOL is bufio.ScanLines without dropping the line terminator,
// so the header can be reassembled exactly.
func scanLinesKeepEOL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
