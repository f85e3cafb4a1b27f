package errors

import "maps"

// ErrorCategory groups failures by what the operator has to look at. Each
// category has a fixed process exit code.
type ErrorCategory string

const (
	// Input problems: fix the command line or releaser.yaml.
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfig        ErrorCategory = "config"
	CategoryAuth          ErrorCategory = "auth"
	CategoryAlreadyExists ErrorCategory = "already_exists"

	// Remote systems a release talks to.
	CategoryNetwork  ErrorCategory = "network"
	CategoryGit      ErrorCategory = "git"
	CategoryForge    ErrorCategory = "forge"
	CategoryRegistry ErrorCategory = "registry"
	CategoryNotFound ErrorCategory = "not_found"

	// Local work.
	CategoryBuild      ErrorCategory = "build"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryJournal    ErrorCategory = "journal"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryInternal   ErrorCategory = "internal"
)

var exitCodes = map[ErrorCategory]int{
	CategoryValidation:    2,
	CategoryAuth:          5,
	CategoryAlreadyExists: 6,
	CategoryConfig:        7,
	CategoryNetwork:       8,
	CategoryGit:           8,
	CategoryForge:         8,
	CategoryRegistry:      8,
	CategoryNotFound:      8,
	CategoryInternal:      10,
	CategoryBuild:         11,
	CategoryFileSystem:    11,
	CategoryRuntime:       12,
	CategoryJournal:       12,
}

// ExitCode returns the process exit code for c, 1 for unknown categories.
func (c ErrorCategory) ExitCode() int {
	if code, ok := exitCodes[c]; ok {
		return code
	}
	return 1
}

// ErrorSeverity decides whether the CLI logs the error in non-verbose mode.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
)

// RetryStrategy tells retry loops (asset uploads, pushes) whether another
// attempt can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryBackoff    RetryStrategy = "backoff"
	RetryRateLimit  RetryStrategy = "rate_limit"
	RetryUserAction RetryStrategy = "user"
)

// ErrorContext carries identifiers such as tag, artifact or run_id.
type ErrorContext map[string]any

// Set stores value under key, allocating the map when needed.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get returns the value stored under key.
func (c ErrorContext) Get(key string) (any, bool) {
	value, ok := c[key]
	return value, ok
}

// Merge returns a new context; keys in other win.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	result := make(ErrorContext, len(c)+len(other))
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}
