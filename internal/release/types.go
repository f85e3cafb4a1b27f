package release

import (
	"fmt"
	"strings"
)

// Request is the immutable input of one pipeline run.
type Request struct {
	RawVersion string
}

// Platform is a target OS/architecture pair.
type Platform struct {
	OS   string `yaml:"os" json:"os"`
	Arch string `yaml:"arch" json:"arch"`
}

// ParsePlatform accepts "os-arch" or "os/arch".
func ParsePlatform(s string) (Platform, error) {
	s = strings.TrimSpace(s)
	sep := "-"
	if strings.Contains(s, "/") {
		sep = "/"
	}
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Platform{}, fmt.Errorf("invalid platform %q: expected os-arch", s)
	}
	return Platform{OS: strings.ToLower(parts[0]), Arch: strings.ToLower(parts[1])}, nil
}

func (p Platform) String() string { return p.OS + "-" + p.Arch }

// Artifact is one packaged build output.
type Artifact struct {
	Platform    Platform `json:"platform"`
	Path        string   `json:"path"`
	ContentType string   `json:"content_type"`
	Name        string   `json:"name"`
}

// Record is the hosted release entry. UploadHandle is opaque to everything
// but the client that created it.
type Record struct {
	ID           string `json:"id"`
	Tag          string `json:"tag"`
	Title        string `json:"title"`
	Body         string `json:"-"`
	Draft        bool   `json:"draft"`
	Prerelease   bool   `json:"prerelease"`
	UploadHandle string `json:"upload_handle,omitempty"`
	HTMLURL      string `json:"html_url,omitempty"`
}

// ContentTypeFor returns the asset content type for an artifact file name.
func ContentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return "application/gzip"
	case strings.HasSuffix(name, ".zip"):
		return "application/zip"
	case strings.HasSuffix(name, ".txt"):
		return "text/plain; charset=utf-8"
	case strings.HasSuffix(name, ".whl"):
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
