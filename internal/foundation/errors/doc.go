// Package errors provides foundational, type-safe error primitives used across releaser.
//
// Key features:
//   - ErrorCategory: what failed, and the exit code it maps to
//   - ErrorSeverity: whether the CLI logs the failure
//   - RetryStrategy: Retry behavior hint for transport layers
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and operator-facing messages
//
// Example usage:
//
//	err := errors.ForgeError("create release failed").
//		WithCause(httpErr).
//		WithContext("tag", "v1.2.0").
//		Build()
package errors
