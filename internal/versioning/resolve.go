package versioning

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/releaser/internal/release"
)

// TagPrefix is prepended to the canonical version to form the tag name.
const TagPrefix = "v"

// Resolved is the version identity of one run. Canonical and Tag are a pure
// function of the input; BuildID and BuildDate are stamped once per run.
type Resolved struct {
	Canonical string    `json:"canonical"`
	Tag       string    `json:"tag"`
	BuildID   string    `json:"build_id"`
	BuildDate time.Time `json:"build_date"`
}

// Resolve validates raw and derives the canonical version and tag.
// "v1.2.0" and "1.2.0" resolve identically.
func Resolve(raw string) (Resolved, error) {
	canonical := strings.TrimSpace(raw)
	if len(canonical) > 0 && (canonical[0] == 'v' || canonical[0] == 'V') {
		canonical = canonical[1:]
	}
	if err := validate(raw, canonical); err != nil {
		return Resolved{}, err
	}
	return Resolved{Canonical: canonical, Tag: TagPrefix + canonical}, nil
}

func validate(raw, canonical string) error {
	invalid := func(reason string) error {
		return &release.InvalidVersionError{Value: raw, Reason: reason}
	}
	if canonical == "" {
		return invalid("empty")
	}
	for i, r := range canonical {
		if !allowed(r) {
			return invalid(fmt.Sprintf("illegal character %q at position %d", r, i))
		}
	}
	if !alnum(rune(canonical[0])) {
		return invalid("must start with a letter or digit")
	}
	switch {
	case strings.Contains(canonical, ".."):
		return invalid("contains \"..\"")
	case strings.HasSuffix(canonical, "."):
		return invalid("ends with \".\"")
	case strings.HasSuffix(strings.ToLower(canonical), ".lock"):
		return invalid("ends with \".lock\"")
	}
	return nil
}

func alnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func allowed(r rune) bool {
	return alnum(r) || r == '.' || r == '-' || r == '+' || r == '_'
}

// IsPrerelease reports whether the canonical version carries a semver
// prerelease part, e.g. "1.2.0-rc.1". Build metadata is ignored.
func (r Resolved) IsPrerelease() bool {
	core := r.Canonical
	if i := strings.IndexByte(core, '+'); i >= 0 {
		core = core[:i]
	}
	return strings.Contains(core, "-")
}

// ArtifactName returns {product}-{canonical}-{os}-{arch}.{ext}.
func ArtifactName(product, canonical string, p release.Platform, ext string) string {
	return fmt.Sprintf("%s-%s-%s-%s.%s", product, canonical, p.OS, p.Arch, strings.TrimPrefix(ext, "."))
}

// Stamper assigns the build identity of a run.
type Stamper struct {
	// RepoDir is the repository whose HEAD names the build. Empty disables
	// the lookup.
	RepoDir string
	Now     func() time.Time
}

// Stamp fills BuildID and BuildDate. BuildID is the HEAD short hash when the
// repository can be read, otherwise a UTC timestamp.
func (s Stamper) Stamp(r Resolved) Resolved {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	r.BuildDate = now().UTC()
	r.BuildID = headShortHash(s.RepoDir)
	if r.BuildID == "" {
		r.BuildID = r.BuildDate.Format("20060102T150405Z")
	}
	return r
}

func headShortHash(dir string) string {
	if dir == "" {
		return ""
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()[:12]
}
