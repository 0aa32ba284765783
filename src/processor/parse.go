package processor

import (
	"regexp"
	"strings"

	"github.com/pboueri/assetc/src"
)

// NativeModules are platform module names that never resolve to files.
var NativeModules = []string{
	"assert", "buffer", "child_process", "cluster", "crypto", "dgram", "dns",
	"domain", "events", "fs", "http", "net", "os", "path", "punycode",
	"querystring", "readline", "repl", "stream", "string_decoder", "sys",
	"tls", "tty", "url", "util", "vm", "zlib",
}

// IsNativeModule reports whether name is a platform module.
func IsNativeModule(name string) bool {
	for _, m := range NativeModules {
		if m == name {
			return true
		}
	}
	return false
}

var (
	reRequire    = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	reCSSImport  = regexp.MustCompile(`@import\s+(?:url\(\s*)?['"]?([^'")\s;]+)['"]?\s*\)?[^;\n]*;`)
	reHTMLTag    = regexp.MustCompile(`(?is)<(script|link|img)\b([^>]*)>(?:\s*</script>)?`)
	reHTMLAttr   = regexp.MustCompile(`(?i)\b(?:src|href)\s*=\s*["']([^"']+)["']`)
	reHTMLInline = regexp.MustCompile(`(?i)\binline\b`)
	reInclude    = regexp.MustCompile(`\{\{-?\s*include\s+"([^"]+)"\s*-?\}\}`)
)

// RegexParser extracts references with regular expressions per type.
type RegexParser struct{}

func NewRegexParser() *RegexParser {
	return &RegexParser{}
}

func (p *RegexParser) Parse(path string, typ src.FileType, content string) ([]*Reference, error) {
	switch typ {
	case src.FileTypeJS:
		return matchReferences(reRequire, content), nil
	case src.FileTypeCSS:
		var refs []*Reference
		for _, ref := range matchReferences(reCSSImport, content) {
			if isRemote(ref.Path) {
				continue
			}
			refs = append(refs, ref)
		}
		return refs, nil
	case src.FileTypeHTML:
		return parseHTML(content), nil
	default:
		return nil, nil
	}
}

func matchReferences(re *regexp.Regexp, content string) []*Reference {
	var refs []*Reference
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		refs = append(refs, &Reference{Context: m[0], Path: m[1]})
	}
	return refs
}

func parseHTML(content string) []*Reference {
	var refs []*Reference
	for _, m := range reHTMLTag.FindAllStringSubmatch(content, -1) {
		if !reHTMLInline.MatchString(m[2]) {
			continue
		}
		attr := reHTMLAttr.FindStringSubmatch(m[2])
		if attr == nil || isRemote(attr[1]) {
			continue
		}
		refs = append(refs, &Reference{Context: m[0], Path: attr[1]})
	}
	return append(refs, matchReferences(reInclude, content)...)
}

func isRemote(path string) bool {
	return strings.HasPrefix(path, "http:") ||
		strings.HasPrefix(path, "https:") ||
		strings.HasPrefix(path, "//") ||
		strings.HasPrefix(path, "data:")
}
