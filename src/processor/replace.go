package processor

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pboueri/assetc/src"
)

var reProcessEnv = regexp.MustCompile(`process\.env\.([A-Za-z_][A-Za-z0-9_]*)`)

// ReplaceReferences rewrites relative js require paths to resolved ids.
func ReplaceReferences(content string, typ src.FileType, refs []*Reference) string {
	if typ != src.FileTypeJS {
		return content
	}
	for _, ref := range refs {
		id := ref.ID()
		if id == "" || id == ref.Path || filepath.Ext(ref.Path) == ".json" {
			continue
		}
		replacement := strings.Replace(ref.Context, ref.Path, id, 1)
		content = strings.ReplaceAll(content, ref.Context, replacement)
	}
	return content
}

// ReplaceEnvironment substitutes process.env.NAME with the quoted value of
// NAME. Unset variables are left untouched.
func ReplaceEnvironment(content string, env Environment) string {
	if env == nil {
		return content
	}
	return reProcessEnv.ReplaceAllStringFunc(content, func(match string) string {
		name := reProcessEnv.FindStringSubmatch(match)[1]
		value, ok := env.Get(name)
		if !ok {
			return match
		}
		quoted, err := json.Marshal(value)
		if err != nil {
			return match
		}
		return string(quoted)
	})
}
