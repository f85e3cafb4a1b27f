package build

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/releaser/internal/release"
)

// writeChecksums writes a sha256sum-compatible manifest of artifacts to path.
func writeChecksums(path string, artifacts []release.Artifact) (*release.Artifact, error) {
	var b strings.Builder
	for _, a := range artifacts {
		sum, err := fileSHA256(a.Path)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%s  %s\n", sum, a.Name)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	return &release.Artifact{Path: path, Name: name, ContentType: release.ContentTypeFor(name)}, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
