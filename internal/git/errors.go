package git

import (
	"errors"
	"fmt"
	"net"
	"strings"

	ferrors "git.home.luguber.info/inful/releaser/internal/foundation/errors"
)

// AuthError is a rejected credential on a remote operation.
type AuthError struct {
	Op, Remote string
	Err        error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.Remote, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// RejectedError is a push refused by the remote (non-fast-forward, protected ref).
type RejectedError struct {
	Op, Remote string
	Err        error
}

func (e *RejectedError) Error() string { return fmt.Sprintf("%s rejected by %s: %v", e.Op, e.Remote, e.Err) }
func (e *RejectedError) Unwrap() error { return e.Err }

// classifyRemoteError wraps remote failures into typed variants when possible.
func classifyRemoteError(op, remote string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "authorization") || strings.Contains(l, "not authorized") || strings.Contains(l, "invalid credentials"):
		return &AuthError{Op: op, Remote: remote, Err: err}
	case strings.Contains(l, "non-fast-forward") || strings.Contains(l, "rejected") || strings.Contains(l, "protected"):
		return &RejectedError{Op: op, Remote: remote, Err: err}
	default:
		return err
	}
}

// ClassifyGitError translates go-git failures into ClassifiedErrors so the
// CLI can map them to exit codes and the retry loop can stop on permanent ones.
func ClassifyGitError(err error, op string, remote string) error {
	if err == nil {
		return nil
	}
	if _, ok := ferrors.AsClassified(err); ok {
		return err
	}

	var authErr *AuthError
	var rejected *RejectedError
	l := strings.ToLower(err.Error())
	var b *ferrors.ErrorBuilder
	switch {
	case errors.As(err, &authErr):
		b = ferrors.AuthError("git authentication failed").UserAction()
	case errors.As(err, &rejected):
		b = ferrors.GitError("git push rejected").WithContext("diverged", true).UserAction()
	case isTransient(err, l):
		b = ferrors.NetworkError("git remote unavailable").Retryable()
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		b = ferrors.NetworkError("git remote rate limited").RateLimit()
	default:
		b = ferrors.GitError("git operation failed")
	}
	return b.WithCause(err).WithContext("op", op).WithContext("remote", remote).Build()
}

func isTransient(err error, lower string) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return strings.Contains(lower, "remote hung up") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "i/o timeout") || strings.Contains(lower, "no route to host") ||
		strings.Contains(lower, "connection refused")
}

// ferr classifies a local repository failure.
func ferr(op string, err error) error {
	return ClassifyGitError(err, op, "")
}
