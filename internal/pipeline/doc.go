// Package pipeline is the release orchestrator. A run moves through
// resolving, building and tagging strictly in order, then publishes the
// hosted release and the package registries side by side. Any failure before
// publishing stops the run without rollback; publish failures leave a
// visibly partial release that the returned report describes member by
// member.
package pipeline
