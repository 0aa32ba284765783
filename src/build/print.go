package build

import (
	"bytes"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/logger"
	"github.com/pboueri/assetc/src/util"
)

// RecommendedSize is the gzipped size above which deployed scripts and
// stylesheets are reported.
const RecommendedSize = 256 * 1024

func (b *Build) printWriteProgress(results []src.WriteResult) {
	action := "built"
	if b.opts.Compress {
		action = "built and compressed"
	}

	for _, res := range results {
		rel := util.RelativeToCwd(res.Filepath)
		if !b.runtime.Deploy || (res.Type != src.FileTypeJS && res.Type != src.FileTypeCSS) {
			logger.Result(res.PrintPrefix, action, rel, "")
			continue
		}

		size, err := GzipSize(res.Content)
		if err != nil {
			logger.Warn("unable to measure %s: %v", rel, err)
			logger.Result(res.PrintPrefix, action, rel, "")
			continue
		}
		logger.Result(res.PrintPrefix, action, rel, "["+humanize.IBytes(size)+" gzipped]")
		if size > RecommendedSize {
			logger.Warn("%s is larger than the recommended %s gzipped", logger.Strong(rel), humanize.IBytes(RecommendedSize))
		}
	}
}

// GzipSize returns the gzipped length of content.
func GzipSize(content string) (uint64, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return uint64(buf.Len()), nil
}
