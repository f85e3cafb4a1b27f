package forge

import (
	"context"
	"os"

	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/release"
)

// CreateReleaseRequest describes the hosted release entry to create.
type CreateReleaseRequest struct {
	Tag        string
	Title      string
	Body       string
	Draft      bool
	Prerelease bool
}

// ReleaseClient is the narrow surface of a hosted release service.
type ReleaseClient interface {
	// CreateRelease creates a release entry for an existing tag.
	CreateRelease(ctx context.Context, req CreateReleaseRequest) (*release.Record, error)
	// UploadAsset attaches the file at path to rec under name.
	UploadAsset(ctx context.Context, rec *release.Record, path, name, contentType string) error
}

func openAsset(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.FileSystemError("failed to open asset").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, errors.FileSystemError("failed to stat asset").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return f, info.Size(), nil
}
