// Package git records a release in version control: it commits the files the
// build is declared to generate, creates the annotated release tag at HEAD
// and optionally pushes both to the configured remote.
//
// Only paths matching the declared generated-path globs are ever staged.
// Anything else that changed in the worktree is drift: it is logged, and
// fails the run in strict mode.
package git
