package processor

import (
	"strings"

	"github.com/pboueri/assetc/src"
)

// Boilerplate is the minimal module registry prepended to bundles that
// request it. It defines require and require.register.
const Boilerplate = `(function (root) {
  var modules = {}, cache = {};

  function require (id) {
    if (cache[id]) return cache[id].exports;
    var fn = modules[id];
    if (fn === undefined) throw new Error('module ' + id + ' not registered');
    var module = cache[id] = { exports: {} };
    if (typeof fn === 'string') fn = (0, eval)('(function (require, module, exports) {' + fn + '\n})');
    fn.call(module.exports, require, module, module.exports);
    return module.exports;
  }

  require.register = function (id, fn) {
    modules[id] = fn;
  };

  root.require = require;
})(typeof window !== 'undefined' ? window : this);
`

// Wrap registers content as a module keyed by id. Lazy modules are
// registered as an escaped string, evaluated on first require.
func Wrap(id, content string, lazy bool) string {
	if lazy {
		return "require.register('" + id + "', " + Escape(content) + ");"
	}
	return "require.register('" + id + "', function(require, module, exports) {\n" +
		indent(content, "  ") +
		"\n});"
}

func indent(content, prefix string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// Escape quotes content as a double-quoted string literal.
func Escape(content string) string {
	return `"` + strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
	).Replace(content) + `"`
}

// Concat joins the content of same-typed dependencies, deepest first, ahead
// of content.
func Concat(typ src.FileType, content string, deps []Source) string {
	if typ != src.FileTypeJS {
		return content
	}
	parts := make([]string, 0, len(deps)+1)
	for _, dep := range deps {
		if dep.Type() != typ {
			continue
		}
		parts = append(parts, dep.Content())
	}
	parts = append(parts, content)
	return strings.Join(parts, "\n")
}

// Comment renders text as a block comment for the type. Types without a
// comment syntax return "".
func Comment(text string, typ src.FileType) string {
	switch typ {
	case src.FileTypeJS, src.FileTypeCSS:
		return "/* " + text + " */"
	case src.FileTypeHTML:
		return "<!-- " + text + " -->"
	default:
		return ""
	}
}
