// Package scaffold renders the starter configuration written by
// `pubhost init`.
package scaffold

import (
	"crypto/rand"
	"embed"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templates embed.FS

// ConfigData holds the values substituted into the config template.
type ConfigData struct {
	Name          string
	URL           string
	SessionSecret string
	CookieSecure  bool
}

// NewConfigData fills in a fresh session secret for the given platform.
func NewConfigData(name, url string) (ConfigData, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return ConfigData{}, fmt.Errorf("generate session secret: %w", err)
	}
	return ConfigData{
		Name:          name,
		URL:           strings.TrimSuffix(url, "/"),
		SessionSecret: hex.EncodeToString(secret),
		CookieSecure:  strings.HasPrefix(url, "https://"),
	}, nil
}

// WriteConfig renders the starter pubhost.yaml into w.
func WriteConfig(w io.Writer, data ConfigData) error {
	tmpl, err := template.ParseFS(templates, "templates/pubhost.yaml.tmpl")
	if err != nil {
		return fmt.Errorf("parse config template: %w", err)
	}
	return tmpl.Execute(w, data)
}
