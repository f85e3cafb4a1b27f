package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	appcfg "git.home.luguber.info/inful/releaser/internal/config"
	ferrors "git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/retry"
	"git.home.luguber.info/inful/releaser/internal/versioning"
)

// Tagger performs the version-control side of a release against one worktree.
type Tagger struct {
	cfg     appcfg.GitConfig
	timeout time.Duration
	policy  retry.Policy
	now     func() time.Time
	// excluded are directories whose contents are never committed nor
	// counted as drift.
	excluded []string
}

// TaggerOption configures a Tagger.
type TaggerOption func(*Tagger)

// WithPushRetry sets the retry policy for pushes.
func WithPushRetry(p retry.Policy) TaggerOption {
	return func(t *Tagger) { t.policy = p }
}

// WithClock overrides the signature timestamp source.
func WithClock(now func() time.Time) TaggerOption {
	return func(t *Tagger) { t.now = now }
}

// WithExcludedDirs keeps build output and scratch directories that live
// inside the worktree out of the drift check. Relative dirs are resolved
// against the current directory, like the build resolves them.
func WithExcludedDirs(dirs ...string) TaggerOption {
	return func(t *Tagger) {
		for _, d := range dirs {
			if d != "" {
				t.excluded = append(t.excluded, d)
			}
		}
	}
}

// NewTagger creates a tagger. timeout bounds each operation; zero disables it.
func NewTagger(cfg appcfg.GitConfig, timeout time.Duration, opts ...TaggerOption) *Tagger {
	t := &Tagger{
		cfg:     cfg,
		timeout: timeout,
		policy:  retry.NewPolicy(appcfg.RetryBackoffExponential, time.Second, 10*time.Second, 2),
		now:     time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tagger) open() (*git.Repository, error) {
	dir := t.cfg.RepoDir
	if dir == "" {
		dir = "."
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, ferr("open", fmt.Errorf("open repository %s: %w", dir, err))
	}
	return repo, nil
}

func (t *Tagger) signature() *object.Signature {
	return &object.Signature{Name: t.cfg.AuthorName, Email: t.cfg.AuthorEmail, When: t.now()}
}

func (t *Tagger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout > 0 {
		return context.WithTimeout(ctx, t.timeout)
	}
	return context.WithCancel(ctx)
}

// StageGenerated commits the changed paths that match allowedPaths. It
// returns release.ErrNothingToCommit when no allowed path changed; callers
// treat that as informational and tag the current HEAD. Changes outside
// allowedPaths are never committed: unstaged drift is logged (and fails in
// strict mode), drift already staged in the index always fails because a
// commit would include it.
func (t *Tagger) StageGenerated(ctx context.Context, allowedPaths []string, message string) (bool, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	repo, err := t.open()
	if err != nil {
		return false, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, ferr("worktree", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, ferr("status", err)
	}
	if err := ctx.Err(); err != nil {
		return false, ferr("status", err)
	}

	excluded := t.excludedGlobs(wt.Filesystem.Root())
	var allowed, drift, stagedDrift []string
	for p, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		switch {
		case matchAny(excluded, p):
			continue
		case matchAny(allowedPaths, p):
			allowed = append(allowed, p)
		case st.Staging != git.Unmodified && st.Staging != git.Untracked:
			stagedDrift = append(stagedDrift, p)
		default:
			drift = append(drift, p)
		}
	}
	sort.Strings(allowed)
	sort.Strings(drift)
	sort.Strings(stagedDrift)

	if len(stagedDrift) > 0 {
		return false, &release.WorktreeDriftError{Paths: stagedDrift}
	}
	if len(drift) > 0 {
		if t.cfg.Strict {
			return false, &release.WorktreeDriftError{Paths: drift}
		}
		slog.Warn("Ignoring worktree changes outside generated paths", slog.Int("count", len(drift)), slog.String("paths", strings.Join(drift, ",")))
	}
	if len(allowed) == 0 {
		return false, release.ErrNothingToCommit
	}

	for _, p := range allowed {
		if status[p].Worktree == git.Deleted {
			_, err = wt.Remove(p)
		} else {
			_, err = wt.Add(p)
		}
		if err != nil {
			return false, ferr("add", fmt.Errorf("stage %s: %w", p, err))
		}
		slog.Debug("Staged generated file", logfields.Path(p))
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: t.signature()})
	if err != nil {
		return false, ferr("commit", err)
	}
	slog.Info("Committed generated files", slog.Int("files", len(allowed)), slog.String("commit", hash.String()[:12]))
	return true, nil
}

// excludedGlobs maps the excluded directories inside root to worktree globs.
func (t *Tagger) excludedGlobs(root string) []string {
	var globs []string
	for _, d := range t.excluded {
		abs, err := filepath.Abs(d)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		globs = append(globs, filepath.ToSlash(rel)+"/**")
	}
	return globs
}

// TagExists reports whether refs/tags/<tag> exists.
func (t *Tagger) TagExists(tag string) (bool, error) {
	repo, err := t.open()
	if err != nil {
		return false, err
	}
	_, err = repo.Tag(tag)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, git.ErrTagNotFound):
		return false, nil
	default:
		return false, ferr("tag", err)
	}
}

// CreateTag creates an annotated tag at HEAD. It never moves an existing tag.
func (t *Tagger) CreateTag(ctx context.Context, tag, message string) (string, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	repo, err := t.open()
	if err != nil {
		return "", err
	}
	if _, err := repo.Tag(tag); err == nil {
		return "", &release.TagExistsError{Tag: tag}
	} else if !errors.Is(err, git.ErrTagNotFound) {
		return "", ferr("tag", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", ferr("head", err)
	}
	if err := ctx.Err(); err != nil {
		return "", ferr("tag", err)
	}
	if _, err := repo.CreateTag(tag, head.Hash(), &git.CreateTagOptions{Tagger: t.signature(), Message: message}); err != nil {
		if errors.Is(err, git.ErrTagExists) {
			return "", &release.TagExistsError{Tag: tag}
		}
		return "", ferr("tag", err)
	}
	slog.Info("Created tag", logfields.Tag(tag), slog.String("commit", head.Hash().String()[:12]))
	return head.Hash().String(), nil
}

// Push sends the tag, and the current branch when a commit was made, to the
// configured remote. It is a no-op unless pushing is enabled.
func (t *Tagger) Push(ctx context.Context, tag string, committed bool) error {
	if !t.cfg.Push {
		slog.Debug("Push disabled", logfields.Tag(tag))
		return nil
	}
	repo, err := t.open()
	if err != nil {
		return err
	}
	specs := []config.RefSpec{config.RefSpec(fmt.Sprintf("refs/tags/%[1]s:refs/tags/%[1]s", tag))}
	if committed {
		head, err := repo.Head()
		if err != nil {
			return ferr("head", err)
		}
		if !head.Name().IsBranch() {
			return ClassifyGitError(fmt.Errorf("HEAD is detached; cannot push release commit"), "push", t.cfg.Remote)
		}
		specs = append([]config.RefSpec{config.RefSpec(head.Name().String() + ":" + head.Name().String())}, specs...)
	}
	opts := &git.PushOptions{RemoteName: t.cfg.Remote, RefSpecs: specs, Auth: t.auth()}

	attempts, err := t.policy.Do(ctx, isRetryable, func(attempt int) error {
		if attempt > 1 {
			slog.Warn("Retrying push", logfields.Tag(tag), logfields.Attempt(attempt))
		}
		pctx, cancel := t.withTimeout(ctx)
		defer cancel()
		perr := repo.PushContext(pctx, opts)
		if perr == nil || errors.Is(perr, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return ClassifyGitError(classifyRemoteError("push", t.cfg.Remote, perr), "push", t.cfg.Remote)
	})
	if err != nil {
		return err
	}
	slog.Info("Pushed release refs", logfields.Tag(tag), slog.String("remote", t.cfg.Remote), logfields.Attempt(attempts))
	return nil
}

func (t *Tagger) auth() transport.AuthMethod {
	if t.cfg.Token == "" {
		return nil
	}
	user := t.cfg.Username
	if user == "" {
		user = "x-access-token"
	}
	return &http.BasicAuth{Username: user, Password: t.cfg.Token}
}

func isRetryable(err error) bool {
	var rejected *RejectedError
	var authErr *AuthError
	if errors.As(err, &rejected) || errors.As(err, &authErr) {
		return false
	}
	ce, ok := ferrors.AsClassified(err)
	return ok && ce.CanRetry()
}

// HeadBranch returns the short name of the checked-out branch, empty when detached.
func (t *Tagger) HeadBranch() string {
	repo, err := t.open()
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil || !head.Name().IsBranch() {
		return ""
	}
	return head.Name().Short()
}

// RenderMessage expands a commit or tag message template over v.
func RenderMessage(tmpl string, v versioning.Resolved) (string, error) {
	t, err := template.New("message").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse message template: %w", err)
	}
	var b strings.Builder
	if err := t.Execute(&b, v); err != nil {
		return "", fmt.Errorf("render message template: %w", err)
	}
	return b.String(), nil
}
