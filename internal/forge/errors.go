package forge

import (
	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
)

var (
	// ErrForgeUnsupported signals that the forge type is not supported.
	ErrForgeUnsupported = errors.ConfigError("unsupported forge type").Fatal().Build()

	// ErrAuthRequired signals that a release client was configured without a token.
	ErrAuthRequired = errors.AuthError("authentication required for release client").UserAction().Build()

	// ErrMissingUploadHandle signals a release record without a usable upload target.
	ErrMissingUploadHandle = errors.ForgeError("release record has no upload handle").Build()
)

// IsPermanent reports whether a client error should not be retried.
// Auth failures and 4xx responses other than 408/429 are permanent;
// unclassified errors are treated as permanent too.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	classified, ok := errors.AsClassified(err)
	if !ok {
		return true
	}
	return !classified.CanRetry()
}
