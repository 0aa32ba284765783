package processor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/util"
)

// Block comments left dangling at line ends by style compilers.
var reCSSCommentLines = regexp.MustCompile(`(?m)(/\*(?:[^*]|\*+[^*/])*\*+/)$`)

// DefaultInliner implements inlining for js (json), css (@import) and html
// (inline tags).
type DefaultInliner struct{}

func NewInliner() *DefaultInliner {
	return &DefaultInliner{}
}

func (i *DefaultInliner) Inline(path string, typ src.FileType, content string, refs []*Reference) (string, error) {
	switch typ {
	case src.FileTypeJS:
		return inlineJS(path, content, refs), nil
	case src.FileTypeCSS:
		return inlineCSS(path, content, refs), nil
	case src.FileTypeHTML:
		return inlineHTML(content, refs), nil
	default:
		return content, nil
	}
}

func inlineJS(path, content string, refs []*Reference) string {
	for _, ref := range refs {
		if filepath.Ext(ref.Path) != ".json" {
			continue
		}
		jsonpath := filepath.Join(filepath.Dir(path), ref.Path)
		if ref.Source != nil {
			jsonpath = ref.Source.Filepath()
		}
		content = strings.ReplaceAll(content, ref.Context, ReadJSON(jsonpath))
	}
	return content
}

// ReadJSON loads and compacts the json document at path. Missing or invalid
// documents degrade to an empty object.
func ReadJSON(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || !json.Valid(data) {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return "{}"
	}
	return buf.String()
}

func inlineCSS(path, content string, refs []*Reference) string {
	content = inlineCSSReferences(content, refs, map[string]bool{path: true})
	return reCSSCommentLines.ReplaceAllString(content, "")
}

// Duplicates are allowed: every @import is replaced, even when the same
// file was already inlined elsewhere. The chain map breaks import cycles.
func inlineCSSReferences(content string, refs []*Reference, chain map[string]bool) string {
	for _, ref := range refs {
		if ref.Source == nil {
			continue
		}
		key := ref.Source.Filepath()
		inlineContent := ""
		if !chain[key] {
			chain[key] = true
			inlineContent = ref.Source.Content()
			if nested := ref.Source.References(); len(nested) > 0 {
				inlineContent = inlineCSSReferences(inlineContent, nested, chain)
			}
			delete(chain, key)
		}
		content = strings.ReplaceAll(content, ref.Context, inlineContent)
	}
	return content
}

func inlineHTML(content string, refs []*Reference) string {
	for _, ref := range refs {
		if ref.Source == nil || !strings.HasPrefix(ref.Context, "<") {
			continue
		}
		m := reHTMLTag.FindStringSubmatch(ref.Context)
		if m == nil {
			continue
		}
		body := ref.Source.Content()
		var replacement string
		switch strings.ToLower(m[1]) {
		case "script":
			replacement = "<script>" + body + "</script>"
		case "link":
			replacement = "<style>" + body + "</style>"
		default:
			replacement = inlineImage(ref.Source.Filepath(), body)
		}
		content = strings.ReplaceAll(content, ref.Context, replacement)
	}
	return content
}

func inlineImage(path, body string) string {
	ext := util.Extension(path)
	if ext == "svg" {
		return body
	}
	mediatype := mime.TypeByExtension("." + ext)
	if mediatype == "" {
		mediatype = "application/octet-stream"
	}
	return `<img src="data:` + mediatype + `;base64,` + base64.StdEncoding.EncodeToString([]byte(body)) + `">`
}
