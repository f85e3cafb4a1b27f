package forge

import (
	"net/http"
	"time"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
)

// NewReleaseClient creates the release client for the configured forge.
// A nil httpClient gets a client with a conservative overall timeout.
func NewReleaseClient(cfg config.ReleaseConfig, httpClient *http.Client) (ReleaseClient, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	switch config.NormalizeForgeType(string(cfg.Forge)) {
	case config.ForgeGitHub:
		return NewGitHubClient(httpClient, cfg.APIURL, cfg.UploadURL, cfg.Owner, cfg.Repo, cfg.Token)
	case config.ForgeForgejo, config.ForgeGitea:
		return NewForgejoClient(httpClient, cfg.APIURL, cfg.Owner, cfg.Repo, cfg.Token)
	default:
		return nil, errors.ConfigError("unsupported forge type").
			WithCause(ErrForgeUnsupported).
			WithContext("type", cfg.Forge).
			Fatal().
			Build()
	}
}
