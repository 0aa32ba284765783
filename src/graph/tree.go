// Package graph renders the configured build tree.
package graph

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pboueri/assetc/src/config"
)

type Node struct {
	Name     string
	Detail   string
	Children []*Node
}

// Options control what FromTargets includes.
type Options struct {
	// Files lists every input and its output under its target.
	Files bool
	// Root makes file paths relative.
	Root string
}

// FromTargets converts normalised targets into display nodes.
func FromTargets(targets []*config.Target, opts Options) []*Node {
	nodes := make([]*Node, 0, len(targets))
	for _, t := range targets {
		nodes = append(nodes, fromTarget(t, opts))
	}
	return nodes
}

func fromTarget(t *config.Target, opts Options) *Node {
	node := &Node{Name: t.ID, Detail: describe(t)}
	if opts.Files && t.Generate == nil {
		for i, in := range t.Inputs {
			leaf := &Node{Name: relative(in, opts.Root)}
			if out := t.Outputs[i]; out != "" {
				leaf.Detail = "→ " + relative(out, opts.Root)
			}
			node.Children = append(node.Children, leaf)
		}
	}
	for _, child := range t.Targets {
		node.Children = append(node.Children, fromTarget(child, opts))
	}
	return node
}

func describe(t *config.Target) string {
	var parts []string
	switch {
	case t.Generate != nil:
		parts = append(parts, fmt.Sprintf("generated %s", t.Output))
	case t.Output != "":
		parts = append(parts, t.Input+" → "+t.Output)
	default:
		parts = append(parts, t.Input)
	}

	var flags []string
	if t.Bundle {
		flags = append(flags, "bundle")
	}
	if t.Batch {
		flags = append(flags, "batch")
	}
	if t.AppServer {
		flags = append(flags, "app server")
	}
	if t.WatchOnly {
		flags = append(flags, "watch only")
	}
	if t.Generate != nil {
		mode := string(t.Generate.Mode)
		if t.Generate.Pattern != "" {
			mode += " " + t.Generate.Pattern
		}
		flags = append(flags, mode)
	}
	if len(flags) > 0 {
		parts = append(parts, "("+strings.Join(flags, ", ")+")")
	}
	return strings.Join(parts, " ")
}

func relative(path, root string) string {
	if root == "" {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// Visualize draws nodes as an indented tree.
func Visualize(nodes []*Node) string {
	var b strings.Builder

	b.WriteString("Build tree:\n")
	b.WriteString("===========\n\n")

	if len(nodes) == 0 {
		b.WriteString("No builds configured\n")
		return b.String()
	}

	var printNode func(node *Node, prefix string, isLast bool)
	printNode = func(node *Node, prefix string, isLast bool) {
		connector := "├── "
		if isLast {
			connector = "└── "
		}

		line := node.Name
		if node.Detail != "" {
			line += " " + node.Detail
		}
		b.WriteString(fmt.Sprintf("%s%s%s\n", prefix, connector, line))

		childPrefix := prefix
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
		for i, child := range node.Children {
			printNode(child, childPrefix, i == len(node.Children)-1)
		}
	}

	for i, node := range nodes {
		if i > 0 {
			b.WriteString("\n")
		}
		printNode(node, "", true)
	}
	return b.String()
}
