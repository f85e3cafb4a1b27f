// Package release holds the data model shared by every pipeline component:
// target platforms, built artifacts, the hosted release record, the typed
// error taxonomy and the run report returned to operators.
package release
