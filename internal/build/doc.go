// Package build produces one packaged artifact per declared platform.
//
// Builder fans out over platforms with bounded concurrency and waits for
// every scheduled build before returning. A Toolchain performs the actual
// build: GoToolchain invokes `go build` with version metadata injected via
// -ldflags and packages the binary; CommandToolchain runs an operator-supplied
// argv template that must produce the named artifact itself.
package build
