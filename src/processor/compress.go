package processor

import (
	"fmt"

	"github.com/pboueri/assetc/src"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
)

var mediaTypes = map[src.FileType]string{
	src.FileTypeJS:   "application/javascript",
	src.FileTypeCSS:  "text/css",
	src.FileTypeHTML: "text/html",
	src.FileTypeJSON: "application/json",
}

// Minifier compresses js, css, html and json.
type Minifier struct {
	m *minify.M
}

func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("application/json", json.Minify)
	return &Minifier{m: m}
}

func (c *Minifier) Compress(typ src.FileType, content string) (string, error) {
	mediatype, ok := mediaTypes[typ]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoCompressor, typ)
	}
	out, err := c.m.String(mediatype, content)
	if err != nil {
		return "", fmt.Errorf("failed to compress %s content: %w", typ, err)
	}
	return out, nil
}
