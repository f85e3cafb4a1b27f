package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/release"
)

// HTTPTarget PUTs every file of the package directory to {url}/{name},
// authenticating with a bearer token or basic credentials.
type HTTPTarget struct {
	name     string
	baseURL  string
	token    string
	username string
	password string
	client   *http.Client
}

// NewHTTPTarget creates an HTTP target. A nil client uses http.DefaultClient.
func NewHTTPTarget(tc config.TargetConfig, client *http.Client) *HTTPTarget {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTarget{
		name:     tc.Name,
		baseURL:  strings.TrimSuffix(tc.URL, "/"),
		token:    tc.Token,
		username: tc.Username,
		password: tc.Password,
		client:   client,
	}
}

func (t *HTTPTarget) Name() string { return t.name }

// Publish implements Target.
func (t *HTTPTarget) Publish(ctx context.Context, dir string) error {
	files, err := listFiles(dir)
	if err != nil {
		return err
	}
	for _, rel := range files {
		if err := t.put(ctx, filepath.Join(dir, filepath.FromSlash(rel)), rel); err != nil {
			return err
		}
	}
	return nil
}

func (t *HTTPTarget) put(ctx context.Context, path, rel string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.FileSystemError("failed to open package file").WithCause(err).WithContext("path", path).Build()
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return errors.FileSystemError("failed to stat package file").WithCause(err).WithContext("path", path).Build()
	}

	target := t.baseURL + "/" + rel
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return errors.ConfigError("invalid http target url").WithCause(err).WithContext("url", target).Build()
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", release.ContentTypeFor(rel))
	req.Header.Set("User-Agent", "releaser")
	switch {
	case t.token != "":
		req.Header.Set("Authorization", "Bearer "+t.token)
	case t.username != "":
		req.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.NetworkError("http upload failed").
			WithCause(err).
			WithContext("target", t.name).
			WithContext("url", target).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode >= 300 {
		category := errors.CategoryRegistry
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			category = errors.CategoryAuth
		}
		return errors.NewError(category, fmt.Sprintf("registry rejected upload: %s", resp.Status)).
			WithContext("target", t.name).
			WithContext("url", target).
			WithContext("code", resp.StatusCode).
			WithContext("response", strings.TrimSpace(string(body))).
			Build()
	}
	return nil
}
