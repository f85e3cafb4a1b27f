package git

import (
	"path"
	"strings"
)

// matchAny reports whether the slash-separated path p matches one of the
// globs. A trailing "/**" matches everything below that directory.
func matchAny(globs []string, p string) bool {
	for _, g := range globs {
		g = strings.TrimPrefix(path.Clean(strings.ReplaceAll(g, "\\", "/")), "./")
		if prefix, ok := strings.CutSuffix(g, "/**"); ok {
			if p == prefix || strings.HasPrefix(p, prefix+"/") {
				return true
			}
			continue
		}
		if ok, _ := path.Match(g, p); ok {
			return true
		}
	}
	return false
}
