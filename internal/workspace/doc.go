// Package workspace manages the scratch directory of a release run and the
// output directory artifacts are written to.
//
// The scratch directory (e.g. releaser-<run id>) holds per-platform staging
// trees and unpackaged binaries. It is removed after the run unless it was
// created with Keep, which leaves it behind for inspection.
package workspace
