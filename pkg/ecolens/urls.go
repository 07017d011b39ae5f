package ecolens

import (
	"fmt"
	"strings"
)

// URLBuilder constructs the URLs under which slot files are served. Local
// URLs point at this process; public URLs use the externally reachable base
// (a tunnel or CDN host) and are what gets forwarded to the ML service.
type URLBuilder struct {
	localBaseURL  string
	publicBaseURL string
}

// NewURLBuilder creates a URL builder. Trailing slashes are stripped from
// both bases. An empty publicBaseURL falls back to the local base.
func NewURLBuilder(localBaseURL, publicBaseURL string) *URLBuilder {
	localBaseURL = strings.TrimSuffix(localBaseURL, "/")
	publicBaseURL = strings.TrimSuffix(publicBaseURL, "/")
	if publicBaseURL == "" {
		publicBaseURL = localBaseURL
	}
	return &URLBuilder{
		localBaseURL:  localBaseURL,
		publicBaseURL: publicBaseURL,
	}
}

// LocalURL returns the URL of a slot file on this server.
func (b *URLBuilder) LocalURL(slot, name string) string {
	return fmt.Sprintf("%s/%s/%s", b.localBaseURL, slot, name)
}

// PublicURL returns the externally reachable URL of a slot file.
func (b *URLBuilder) PublicURL(slot, name string) string {
	return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, slot, name)
}
