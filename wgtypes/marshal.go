package wgtypes

import (
	"bytes"
	"text/template"
)

// Spec: https://git.zx2c4.com/WireGuard/about/src/tools/man/wg.8

const configTemplateSpec = `[Interface]
PrivateKey = {{ .PrivateKey | wgKey }}
{{- if .ListenPort }}{{ "\n" }}ListenPort = {{ .ListenPort }}{{ end }}
{{- if .FirewallMark }}{{ "\n" }}FwMark = {{ .FirewallMark }}{{ end }}
{{- range .Peers }}

[Peer]
PublicKey = {{ .PublicKey }}
{{- if .PresharedKey }}{{ "\n" }}PresharedKey = {{ .PresharedKey | wgKey }}{{ end }}
{{- if .AllowedIPs }}{{ "\n" }}AllowedIPs = {{ range $i, $el := .AllowedIPs }}{{ if $i }}, {{ end }}{{ $el.String }}{{ end }}{{ end }}
{{- if .Endpoint }}{{ "\n" }}Endpoint = {{ .Endpoint }}{{ end }}
{{- if .PersistentKeepaliveInterval }}{{ "\n" }}PersistentKeepalive = {{ .PersistentKeepaliveInterval.Seconds | printf "%.0f" }}{{ end }}
{{- end }}
`

func serializeKey(key *Key) string {
	if key == nil {
		return ""
	}

	return key.String()
}

var configTemplate = template.Must(
	template.
		New("wg-cfg").
		Funcs(template.FuncMap{"wgKey": serializeKey}).
		Parse(configTemplateSpec))

// MarshalText renders cfg in the INI-style format consumed by wg(8)'s
// setconf command and this module's config parser.
func (cfg *Config) MarshalText() (text []byte, err error) {
	buf := &bytes.Buffer{}
	if err := configTemplate.Execute(buf, cfg); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
