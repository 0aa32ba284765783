package file

import "github.com/pboueri/assetc/src"

// DefaultWorkflows are used for types the project config does not override.
var DefaultWorkflows = map[src.FileType]Workflow{
	src.FileTypeJS: MustParseWorkflow(
		[]string{"load", "compile", "parse", "inline", "replaceReferences", "replaceEnvironment", "lint", "compress:compress:lazy", "wrap:bundle"},
		[]string{"concat:bundle", "compress:compress"},
	),
	src.FileTypeCSS: MustParseWorkflow(
		[]string{"load", "compile", "parse", "lint"},
		[]string{"inline", "compress:compress"},
	),
	src.FileTypeHTML: MustParseWorkflow(
		[]string{"load", "parse"},
		[]string{"compile", "inline", "compress:compress"},
	),
	src.FileTypeJSON: MustParseWorkflow(
		[]string{"load"},
	),
	src.FileTypeAsset: MustParseWorkflow(
		[]string{"load"},
	),
}
