package config

import (
	"strings"

	"git.home.luguber.info/inful/releaser/internal/foundation/normalization"
)

var (
	toolchainKinds = normalization.NewNormalizer("build.toolchain", map[string]ToolchainKind{
		"go":      ToolchainGo,
		"command": ToolchainCommand,
	}, "")

	prereleaseModes = normalization.NewNormalizer("release.prerelease", map[string]PrereleaseMode{
		"auto":   PrereleaseAuto,
		"true":   PrereleaseAlways,
		"always": PrereleaseAlways,
		"yes":    PrereleaseAlways,
		"false":  PrereleaseNever,
		"never":  PrereleaseNever,
		"no":     PrereleaseNever,
	}, "")

	targetKinds = normalization.NewNormalizer("targets[].kind", map[string]TargetKind{
		"command": TargetCommand,
		"s3":      TargetS3,
		"http":    TargetHTTP,
	}, "")

	partialBuildPolicies = normalization.NewNormalizer("policy.on_partial_build", map[string]PartialBuildPolicy{
		"abort": PartialBuildAbort,
		"fail":  PartialBuildAbort,
		"draft": PartialBuildDraft,
	}, "")
)

// normalizeField canonicalizes an enum field in place. Unknown values are
// only trimmed and lowercased, so validation still rejects them by name.
func normalizeField[T ~string](n *normalization.Normalizer[T], field *T) {
	if *field == "" {
		return
	}
	if v, err := n.NormalizeWithError(string(*field)); err == nil {
		*field = v
		return
	}
	*field = T(strings.ToLower(strings.TrimSpace(string(*field))))
}
