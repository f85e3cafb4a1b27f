package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyVersion    = "version"
	KeyTag        = "tag"
	KeyPlatform   = "platform"
	KeyArtifact   = "artifact"
	KeyTarget     = "target"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyName       = "name"
	KeySchedule   = "schedule"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Tag(t string) slog.Attr          { return slog.String(KeyTag, t) }
func Platform(p string) slog.Attr     { return slog.String(KeyPlatform, p) }
func Artifact(a string) slog.Attr     { return slog.String(KeyArtifact, a) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func Schedule(s string) slog.Attr     { return slog.String(KeySchedule, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Duration converts d to a DurationMS attribute.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d) / float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
