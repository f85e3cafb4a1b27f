package release

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNothingToCommit reports that the build left no declared files to commit.
// It is informational: tagging proceeds on the current HEAD.
var ErrNothingToCommit = errors.New("nothing to commit")

// InvalidVersionError rejects an empty or malformed version string.
type InvalidVersionError struct {
	Value  string
	Reason string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Value, e.Reason)
}

// BuildFailedError is a failed build for one platform.
type BuildFailedError struct {
	Platform Platform
	Err      error
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("build failed for %s: %v", e.Platform, e.Err)
}
func (e *BuildFailedError) Unwrap() error { return e.Err }

// TagExistsError refuses to overwrite an existing release tag.
type TagExistsError struct {
	Tag string
}

func (e *TagExistsError) Error() string { return fmt.Sprintf("tag %s already exists", e.Tag) }

// WorktreeDriftError lists modified files outside the declared generated paths.
type WorktreeDriftError struct {
	Paths []string
}

func (e *WorktreeDriftError) Error() string {
	return fmt.Sprintf("worktree has undeclared changes: %s", strings.Join(e.Paths, ", "))
}

// ReleaseCreateError is a rejected hosted release creation.
type ReleaseCreateError struct {
	Tag string
	Err error
}

func (e *ReleaseCreateError) Error() string {
	return fmt.Sprintf("create release for %s: %v", e.Tag, e.Err)
}
func (e *ReleaseCreateError) Unwrap() error { return e.Err }

// AssetUploadError is an asset that could not be uploaded within the retry budget.
type AssetUploadError struct {
	Artifact string
	Attempts int
	Err      error
}

func (e *AssetUploadError) Error() string {
	return fmt.Sprintf("upload asset %s failed after %d attempt(s): %v", e.Artifact, e.Attempts, e.Err)
}
func (e *AssetUploadError) Unwrap() error { return e.Err }

// PublishError is a failed publish to one package registry target.
type PublishError struct {
	Target string
	Err    error
}

func (e *PublishError) Error() string { return fmt.Sprintf("publish to %s: %v", e.Target, e.Err) }
func (e *PublishError) Unwrap() error { return e.Err }
