package testforge

import (
	"context"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"git.home.luguber.info/inful/releaser/internal/forge"
	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/release"
)

// TestForge is an in-memory forge.ReleaseClient for tests.
type TestForge struct {
	mu             sync.Mutex
	name           string
	nextID         int
	createFailMode FailMode
	uploadFailures map[string]uploadFailure
	delay          time.Duration

	releases []*release.Record
	attempts map[string]int
	uploaded map[string][]byte
}

type uploadFailure struct {
	mode  FailMode
	times int // -1 fails forever
}

// FailMode defines how the test forge should fail.
type FailMode int

const (
	FailModeNone FailMode = iota
	FailModeAuth
	FailModeNetwork
	FailModeRateLimit
	FailModeNotFound
	FailModeConflict
)

var _ forge.ReleaseClient = (*TestForge)(nil)

// NewTestForge creates an empty test forge.
func NewTestForge(name string) *TestForge {
	return &TestForge{
		name:           name,
		nextID:         1,
		uploadFailures: make(map[string]uploadFailure),
		attempts:       make(map[string]int),
		uploaded:       make(map[string][]byte),
	}
}

// Name returns the configured name.
func (tf *TestForge) Name() string { return tf.name }

// SetCreateFailMode makes CreateRelease fail with mode.
func (tf *TestForge) SetCreateFailMode(mode FailMode) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.createFailMode = mode
}

// FailUpload makes the first times uploads of asset fail with mode; times < 0 fails every attempt.
func (tf *TestForge) FailUpload(asset string, mode FailMode, times int) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.uploadFailures[asset] = uploadFailure{mode: mode, times: times}
}

// SetDelay adds artificial delay to simulate network latency.
func (tf *TestForge) SetDelay(delay time.Duration) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.delay = delay
}

// Releases returns the created release records.
func (tf *TestForge) Releases() []release.Record {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	out := make([]release.Record, len(tf.releases))
	for i, r := range tf.releases {
		out[i] = *r
	}
	return out
}

// Attempts returns the number of upload attempts for asset.
func (tf *TestForge) Attempts(asset string) int {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.attempts[asset]
}

// Uploaded returns the sorted names of successfully uploaded assets.
func (tf *TestForge) Uploaded() []string {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	names := make([]string, 0, len(tf.uploaded))
	for n := range tf.uploaded {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Content returns the uploaded bytes of asset.
func (tf *TestForge) Content(asset string) []byte {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.uploaded[asset]
}

// simulate adds delay and maps a failure mode to the error a real client returns.
func (tf *TestForge) simulate(ctx context.Context, mode FailMode) error {
	tf.mu.Lock()
	delay := tf.delay
	tf.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.NetworkError("request canceled").WithCause(ctx.Err()).Retryable().Build()
		}
	}

	switch mode {
	case FailModeAuth:
		return errors.AuthError("forge API error: 401 Unauthorized").WithContext("code", 401).UserAction().Build()
	case FailModeNetwork:
		return errors.NetworkError("failed to execute forge request").Retryable().Build()
	case FailModeRateLimit:
		return errors.ForgeError("forge API error: 429 Too Many Requests").WithContext("code", 429).RateLimit().Build()
	case FailModeNotFound:
		return errors.NewError(errors.CategoryNotFound, "forge API error: 404 Not Found").WithContext("code", 404).Build()
	case FailModeConflict:
		return errors.NewError(errors.CategoryAlreadyExists, "forge API error: 422 Unprocessable Entity").WithContext("code", 422).Build()
	default:
		return nil
	}
}

// CreateRelease implements forge.ReleaseClient.
func (tf *TestForge) CreateRelease(ctx context.Context, req forge.CreateReleaseRequest) (*release.Record, error) {
	tf.mu.Lock()
	mode := tf.createFailMode
	tf.mu.Unlock()
	if err := tf.simulate(ctx, mode); err != nil {
		return nil, err
	}

	tf.mu.Lock()
	defer tf.mu.Unlock()
	for _, r := range tf.releases {
		if r.Tag == req.Tag {
			return nil, errors.NewError(errors.CategoryAlreadyExists, "release already exists").WithContext("tag", req.Tag).Build()
		}
	}
	id := strconv.Itoa(tf.nextID)
	tf.nextID++
	rec := &release.Record{
		ID:           id,
		Tag:          req.Tag,
		Title:        req.Title,
		Body:         req.Body,
		Draft:        req.Draft,
		Prerelease:   req.Prerelease,
		UploadHandle: "test://" + tf.name + "/releases/" + id,
		HTMLURL:      "https://" + tf.name + ".example/releases/" + req.Tag,
	}
	tf.releases = append(tf.releases, rec)
	cp := *rec
	return &cp, nil
}

// UploadAsset implements forge.ReleaseClient.
func (tf *TestForge) UploadAsset(ctx context.Context, rec *release.Record, path, name, _ string) error {
	tf.mu.Lock()
	tf.attempts[name]++
	mode := FailModeNone
	if f, ok := tf.uploadFailures[name]; ok && f.times != 0 {
		mode = f.mode
		if f.times > 0 {
			f.times--
			tf.uploadFailures[name] = f
		}
	}
	known := false
	for _, r := range tf.releases {
		if rec != nil && r.ID == rec.ID {
			known = true
		}
	}
	tf.mu.Unlock()

	if !known {
		return errors.NewError(errors.CategoryNotFound, "release not found").Build()
	}
	if err := tf.simulate(ctx, mode); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.FileSystemError("failed to open asset").WithCause(err).Build()
	}

	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.uploaded[name] = data
	return nil
}
