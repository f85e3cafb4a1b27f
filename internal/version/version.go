package version

// Version is the releaser version, set via ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/releaser/internal/version.Version=v1.0.0".
var Version = "dev"

// Build metadata, set alongside Version.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	return "releaser " + Version + " (commit " + GitCommit + ", built " + BuildTime + ")"
}
