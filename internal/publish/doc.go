// Package publish creates the hosted release entry for a tag and attaches the
// built artifacts as assets, retrying transient upload failures.
package publish
