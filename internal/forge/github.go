package forge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/release"
)

const (
	githubAPIURL    = "https://api.github.com"
	githubUploadURL = "https://uploads.github.com"
)

// GitHubClient creates releases through the GitHub REST API and uploads assets
// to the uploads host.
type GitHubClient struct {
	*BaseForge
	owner     string
	repo      string
	uploadURL string
}

// NewGitHubClient creates a GitHub release client for owner/repo.
func NewGitHubClient(httpClient *http.Client, apiURL, uploadURL, owner, repo, token string) (*GitHubClient, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	if apiURL == "" {
		apiURL = githubAPIURL
	}
	if uploadURL == "" {
		uploadURL = githubUploadURL
	}

	base := NewBaseForge(httpClient, apiURL, token)
	base.SetCustomHeader("Accept", "application/vnd.github+json")
	base.SetCustomHeader("X-GitHub-Api-Version", "2022-11-28")

	return &GitHubClient{
		BaseForge: base,
		owner:     owner,
		repo:      repo,
		uploadURL: strings.TrimSuffix(uploadURL, "/"),
	}, nil
}

type githubReleaseRequest struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

type githubRelease struct {
	ID         int64  `json:"id"`
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	HTMLURL    string `json:"html_url"`
	UploadURL  string `json:"upload_url"`
}

// CreateRelease implements ReleaseClient.
func (c *GitHubClient) CreateRelease(ctx context.Context, in CreateReleaseRequest) (*release.Record, error) {
	endpoint := fmt.Sprintf("repos/%s/%s/releases", c.owner, c.repo)
	req, err := c.NewRequest(ctx, http.MethodPost, endpoint, githubReleaseRequest{
		TagName:    in.Tag,
		Name:       in.Title,
		Body:       in.Body,
		Draft:      in.Draft,
		Prerelease: in.Prerelease,
	})
	if err != nil {
		return nil, err
	}

	var out githubRelease
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
		UploadHandle: c.uploadEndpoint(out.UploadURL, id),
		HTMLURL:      out.HTMLURL,
	}, nil
}

// uploadEndpoint strips the URI template suffix ("{?name,label}") from the
// upload_url returned by the API, falling back to the configured upload host.
func (c *GitHubClient) uploadEndpoint(tmpl, id string) string {
	if i := strings.Index(tmpl, "{"); i >= 0 {
		tmpl = tmpl[:i]
	}
	if tmpl != "" {
		return tmpl
	}
	return fmt.Sprintf("%s/repos/%s/%s/releases/%s/assets", c.uploadURL, c.owner, c.repo, id)
}

// UploadAsset implements ReleaseClient. The body is the raw file.
func (c *GitHubClient) UploadAsset(ctx context.Context, rec *release.Record, path, name, contentType string) error {
	if rec == nil || rec.UploadHandle == "" {
		return ErrMissingUploadHandle
	}
	f, size, err := openAsset(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	target := rec.UploadHandle + "?name=" + url.QueryEscape(name)
	req, err := c.NewUploadRequest(ctx, target, f, size, contentType)
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
