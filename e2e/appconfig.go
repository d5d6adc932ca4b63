package e2e

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

// appConfigOptions is used to fill in a config template with details unique to
// a specific test environment. Keep this as small as possible so the input
// remains as close to a "real" YAML document as we can make it.
//
// Fields are exported so we can use them in templates.
type appConfigOptions struct {
	RelayHost string
	RelayPort string
	CAFile    string
	MaxSize   string
	Charset   string
}

// createAppConfig writes a configuration YAML doc to the given path.
func createAppConfig(path string, opts appConfigOptions) error {
	configTemplate := `---
relay:
    host: {{ .RelayHost }}
    port: {{ .RelayPort }}
    caFile: {{ .CAFile }}
    localName: e2e.example.com
    timeout: 5s
{{- if or .MaxSize .Charset }}
files:
{{- if .MaxSize }}
    maxSize: {{ .MaxSize }}
{{- end }}
{{- if .Charset }}
    charset: {{ .Charset }}
{{- end }}
{{- end }}
`

	tmpl, err := template.New("conf").Parse(configTemplate)

	// This means the config template string was written incorrectly. Not
	// an issue with the application itself.
	if err != nil {
		return fmt.Errorf("couldn't parse the application config template: %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, opts); err != nil {
		return fmt.Errorf("couldn't fill in the application config template: %v", err)
	}

	return os.WriteFile(path, buf.Bytes(), 0o600)
}
