package src

// FileType is the processing category of a source file.
type FileType string

const (
	FileTypeJS    FileType = "js"
	FileTypeCSS   FileType = "css"
	FileTypeHTML  FileType = "html"
	FileTypeJSON  FileType = "json"
	FileTypeAsset FileType = "asset"
)

// FileTypes lists every known type in resolution priority order.
var FileTypes = []FileType{FileTypeJS, FileTypeCSS, FileTypeHTML, FileTypeJSON, FileTypeAsset}

func (t FileType) String() string {
	return string(t)
}

// Extension returns the canonical output extension for the type.
// Assets keep their own extension, signalled by an empty result.
func (t FileType) Extension() string {
	switch t {
	case FileTypeJS, FileTypeCSS, FileTypeHTML, FileTypeJSON:
		return string(t)
	default:
		return ""
	}
}

// WriteResult describes one written output artifact.
type WriteResult struct {
	Filepath    string
	Content     string
	Type        FileType
	PrintPrefix string
}

// LintItem is a single linter finding.
type LintItem struct {
	Line     int
	Col      int
	Reason   string
	Evidence string
}
