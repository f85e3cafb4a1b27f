// Package versioning turns the operator-supplied version string into the
// canonical version, the release tag and the per-run build identity.
package versioning
