package userconfig

import (
	"errors"
	"fmt"
	"io"

	"github.com/ptgott/gmailer/email"
	"github.com/rs/zerolog/log"

	yaml "gopkg.in/yaml.v2"
)

// Meta represents all options the optional config file can set, i.e.,
// everything except the message itself and the credentials, which only
// come from the command line.
type Meta struct {
	Relay email.RelaySettings `yaml:"relay"`
	Files email.FileSettings  `yaml:"files"`
}

// CheckAndSetDefaults validates m and either returns a copy of m with default
// settings applied or returns an error due to an invalid configuration
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := Meta{}

	r, err := m.Relay.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.Relay = r

	f, err := m.Files.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.Files = f

	return c, nil
}

// Parse reads a configuration from possibly arbitrary user input. An error
// indicates a problem with parsing; validation happens in
// CheckAndSetDefaults. The Reader r can be either JSON or YAML. An empty
// document is a valid configuration that keeps every default.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	dec := yaml.NewDecoder(r)
	// Catch misspelled section names
	dec.SetStrict(true)

	err := dec.Decode(&m)
	if errors.Is(err, io.EOF) {
		log.Debug().Msg("the config file is empty, using defaults")
		return &Meta{}, nil
	}
	if err != nil {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}

	return &m, nil
}
