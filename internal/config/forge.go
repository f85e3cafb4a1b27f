package config

import "git.home.luguber.info/inful/releaser/internal/foundation/normalization"

// ForgeType enumerates supported hosted release services.
type ForgeType string

const (
	ForgeGitHub  ForgeType = "github"
	ForgeForgejo ForgeType = "forgejo"
	ForgeGitea   ForgeType = "gitea"
)

var forgeTypes = normalization.NewNormalizer("release.forge", map[string]ForgeType{
	"github":  ForgeGitHub,
	"forgejo": ForgeForgejo,
	"gitea":   ForgeGitea,
}, "")

// NormalizeForgeType canonicalizes a forge type string (case-insensitive) or returns empty if unknown.
func NormalizeForgeType(raw string) ForgeType {
	return forgeTypes.Normalize(raw)
}
