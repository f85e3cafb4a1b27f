// Package registry publishes the package directory to external package
// registries. Each configured target is an opaque sink: a command-line
// uploader, an S3-compatible bucket or a plain HTTP PUT endpoint.
package registry
