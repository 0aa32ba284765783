package processor

import (
	"regexp"
	"strings"

	"github.com/pboueri/assetc/src"
)

// LintRule checks a single line.
type LintRule struct {
	Types  []src.FileType
	Reason string
	Match  func(line string) int
}

func (r LintRule) applies(typ src.FileType) bool {
	for _, t := range r.Types {
		if t == typ {
			return true
		}
	}
	return false
}

var reDebugger = regexp.MustCompile(`\bdebugger\s*;?`)

// DefaultLintRules are the built-in line checks.
var DefaultLintRules = []LintRule{
	{
		Types:  []src.FileType{src.FileTypeJS, src.FileTypeCSS},
		Reason: "trailing whitespace",
		Match: func(line string) int {
			trimmed := strings.TrimRight(line, " \t")
			if len(trimmed) == len(line) {
				return -1
			}
			return len(trimmed)
		},
	},
	{
		Types:  []src.FileType{src.FileTypeJS},
		Reason: "forgotten 'debugger' statement",
		Match: func(line string) int {
			if loc := reDebugger.FindStringIndex(line); loc != nil {
				return loc[0]
			}
			return -1
		},
	},
	{
		Types:  []src.FileType{src.FileTypeCSS},
		Reason: "use of !important",
		Match: func(line string) int {
			return strings.Index(line, "!important")
		},
	},
}

// RuleLinter applies line rules.
type RuleLinter struct {
	Rules []LintRule
}

func NewRuleLinter() *RuleLinter {
	return &RuleLinter{Rules: DefaultLintRules}
}

func (l *RuleLinter) Lint(typ src.FileType, content string) []src.LintItem {
	var items []src.LintItem
	for i, line := range strings.Split(content, "\n") {
		for _, rule := range l.Rules {
			if !rule.applies(typ) {
				continue
			}
			if col := rule.Match(line); col >= 0 {
				items = append(items, src.LintItem{
					Line:     i + 1,
					Col:      col + 1,
					Reason:   rule.Reason,
					Evidence: strings.TrimSpace(line),
				})
			}
		}
	}
	return items
}
