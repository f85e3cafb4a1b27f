package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
)

const userAgent = "releaser"

// BaseForge provides common HTTP operations for hosted release clients.
type BaseForge struct {
	httpClient *http.Client
	apiURL     string
	token      string

	// Forge-specific customization hooks
	authHeaderPrefix string // "Bearer " for GitHub, "token " for Forgejo/Gitea
	customHeaders    map[string]string
}

// NewBaseForge creates a BaseForge with common forge HTTP client settings.
func NewBaseForge(httpClient *http.Client, apiURL, token string) *BaseForge {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BaseForge{
		httpClient:       httpClient,
		apiURL:           apiURL,
		token:            token,
		authHeaderPrefix: "Bearer ",
		customHeaders:    make(map[string]string),
	}
}

// SetAuthHeaderPrefix customizes the authorization header format (e.g., "token " for Forgejo).
func (b *BaseForge) SetAuthHeaderPrefix(prefix string) {
	b.authHeaderPrefix = prefix
}

// SetCustomHeader sets forge-specific headers (e.g., the GitHub API version).
func (b *BaseForge) SetCustomHeader(key, value string) {
	b.customHeaders[key] = value
}

// NewRequest creates a JSON API request relative to the API URL.
// Endpoint should be a relative path like "repos/{owner}/{repo}/releases";
// query strings in endpoint are preserved.
func (b *BaseForge) NewRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	u, err := b.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, errors.ForgeError("failed to marshal request body").
				WithCause(err).
				Build()
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := b.newRawRequest(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// NewUploadRequest creates a request with a raw body against an absolute URL
// (GitHub upload host) or an endpoint relative to the API URL.
func (b *BaseForge) NewUploadRequest(ctx context.Context, target string, body io.Reader, size int64, contentType string) (*http.Request, error) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		u, err := b.resolve(target)
		if err != nil {
			return nil, err
		}
		target = u.String()
	}
	req, err := b.newRawRequest(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

func (b *BaseForge) resolve(endpoint string) (*url.URL, error) {
	cleanEndpoint := strings.TrimPrefix(endpoint, "/")

	var rawQuery string
	if idx := strings.Index(cleanEndpoint, "?"); idx != -1 {
		rawQuery = cleanEndpoint[idx+1:]
		cleanEndpoint = cleanEndpoint[:idx]
	}

	u, err := url.Parse(b.apiURL)
	if err != nil {
		return nil, errors.ConfigError("failed to parse API URL").
			WithCause(err).
			WithContext("api_url", b.apiURL).
			Build()
	}

	// Join paths while preserving base path
	basePath := strings.TrimSuffix(u.Path, "/")
	u.Path = path.Join(basePath, cleanEndpoint)
	if rawQuery != "" {
		u.RawQuery = rawQuery
	}
	return u, nil
}

func (b *BaseForge) newRawRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.ForgeError("failed to create request").
			WithCause(err).
			WithContext("method", method).
			WithContext("url", target).
			Build()
	}

	if b.token != "" {
		req.Header.Set("Authorization", b.authHeaderPrefix+b.token)
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range b.customHeaders {
		req.Header.Set(key, value)
	}
	return req, nil
}

// DoRequest executes an HTTP request and decodes the JSON response into result.
// Status codes are mapped to error categories: 401/403 auth, 404 not found,
// 409/422 already exists, 408/429/5xx retryable forge errors.
func (b *BaseForge) DoRequest(req *http.Request, result any) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return errors.NetworkError("failed to execute forge request").
			WithCause(err).
			WithContext("method", req.Method).
			WithContext("url", req.URL.String()).
			Retryable().
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return statusError(req, resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errors.ForgeError("failed to decode response").
				WithCause(err).
				Build()
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	return nil
}

func statusError(req *http.Request, resp *http.Response) error {
	// Read limited body for diagnostics
	limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	bodyStr := strings.ReplaceAll(string(limitedBody), "\n", " ")

	category := errors.CategoryForge
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		category = errors.CategoryAuth
	case http.StatusNotFound:
		category = errors.CategoryNotFound
	case http.StatusConflict, http.StatusUnprocessableEntity:
		category = errors.CategoryAlreadyExists
	}

	b := errors.NewError(category, fmt.Sprintf("forge API error: %s", resp.Status)).
		WithContext("status", resp.Status).
		WithContext("code", resp.StatusCode).
		WithContext("url", req.URL.String()).
		WithContext("response", bodyStr)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		b = b.RateLimit()
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		b = b.Retryable()
	case category == errors.CategoryAuth:
		b = b.UserAction()
	}
	return b.Build()
}
