package email

import "fmt"

// RequestError means a SendRequest breaks one of its invariants.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return "invalid send request: " + e.Reason
}

// FileError means a body or MIME file couldn't be read.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("can't read %q: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// AddressError means an address failed strict syntax validation. Field is
// the header or flag the address came from.
type AddressError struct {
	Field string
	Value string
	Err   error
}

func (e *AddressError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("bad %v address: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("bad %v address %q: %v", e.Field, e.Value, e.Err)
}

func (e *AddressError) Unwrap() error { return e.Err }

// TransportError wraps any failure while talking to the relay. Op names the
// phase that failed, e.g. "dial" or "send". Delivery is atomic: when Send
// returns a TransportError the relay didn't accept the message.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("smtp %v: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
