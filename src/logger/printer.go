package logger

import (
	"strings"

	"github.com/gookit/color"
)

// PrefixGlyph is repeated once per nesting level in front of progress lines.
const PrefixGlyph = "∙"

// Prefix returns the indentation marker for a build at the given depth.
func Prefix(level int) string {
	if level <= 0 {
		return ""
	}
	return strings.Repeat(PrefixGlyph, level) + " "
}

// Progress logs a build step line ("building", "compressing", ...).
func Progress(prefix, action, subject string) {
	Info("%s%s %s", prefix, color.Cyan.Sprint(action), color.Bold.Sprint(subject))
}

// Result logs a written output line.
func Result(prefix, action, subject, extra string) {
	if extra != "" {
		Info("%s%s %s %s", prefix, color.Green.Sprint(action), color.Bold.Sprint(subject), color.Gray.Sprint(extra))
		return
	}
	Info("%s%s %s", prefix, color.Green.Sprint(action), color.Bold.Sprint(subject))
}

// Strong highlights a value inside a log message.
func Strong(s string) string {
	return color.Yellow.Sprint(s)
}
