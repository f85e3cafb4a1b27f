package forge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/release"
)

// ForgejoClient creates releases through the Forgejo (and Gitea) API, which
// share the same release endpoints and a multipart asset upload.
type ForgejoClient struct {
	*BaseForge
	owner string
	repo  string
}

// NewForgejoClient creates a Forgejo/Gitea release client. apiURL is the API
// root, e.g. https://codeberg.org/api/v1.
func NewForgejoClient(httpClient *http.Client, apiURL, owner, repo, token string) (*ForgejoClient, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	if apiURL == "" {
		return nil, errors.ConfigError("forgejo release client requires api_url").Build()
	}

	base := NewBaseForge(httpClient, apiURL, token)
	base.SetAuthHeaderPrefix("token ")
	base.SetCustomHeader("Accept", "application/json")

	return &ForgejoClient{BaseForge: base, owner: owner, repo: repo}, nil
}

type forgejoReleaseRequest struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

type forgejoRelease struct {
	ID         int64  `json:"id"`
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	HTMLURL    string `json:"html_url"`
}

// CreateRelease implements ReleaseClient.
func (c *ForgejoClient) CreateRelease(ctx context.Context, in CreateReleaseRequest) (*release.Record, error) {
	endpoint := fmt.Sprintf("repos/%s/%s/releases", c.owner, c.repo)
	req, err := c.NewRequest(ctx, http.MethodPost, endpoint, forgejoReleaseRequest{
		TagName:    in.Tag,
		Name:       in.Title,
		Body:       in.Body,
		Draft:      in.Draft,
		Prerelease: in.Prerelease,
	})
	if err != nil {
		return nil, err
	}

	var out forgejoRelease
	if err := c.DoRequest(req, &out); err != nil {
		return nil, err
	}

	id := strconv.FormatInt(out.ID, 10)
	return &release.Record{
		ID:           id,
		Tag:          out.TagName,
		Title:        out.Name,
		Body:         in.Body,
		Draft:        out.Draft,
		Prerelease:   out.Prerelease,
		UploadHandle: fmt.Sprintf("repos/%s/%s/releases/%s/assets", c.owner, c.repo, id),
		HTMLURL:      out.HTMLURL,
	}, nil
}

// UploadAsset implements ReleaseClient using a multipart "attachment" field.
func (c *ForgejoClient) UploadAsset(ctx context.Context, rec *release.Record, path, name, contentType string) error {
	if rec == nil || rec.UploadHandle == "" {
		return ErrMissingUploadHandle
	}
	f, _, err := openAsset(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("attachment", name)
	if err != nil {
		return errors.InternalError("failed to create multipart field").WithCause(err).Build()
	}
	if _, err := io.Copy(part, f); err != nil {
		return errors.FileSystemError("failed to read asset").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	if err := mw.Close(); err != nil {
		return errors.InternalError("failed to finalize multipart body").WithCause(err).Build()
	}

	target := rec.UploadHandle + "?name=" + url.QueryEscape(name)
	req, err := c.NewUploadRequest(ctx, target, &buf, int64(buf.Len()), mw.FormDataContentType())
	if err != nil {
		return err
	}
	if err := c.DoRequest(req, nil); err != nil {
		if classified, ok := errors.AsClassified(err); ok {
			return classified.WithContext("asset", name)
		}
		return err
	}
	return nil
}
