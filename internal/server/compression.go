// compression.go - Response compression for the UI routes.
//
// The index and static assets are served through chi's Compressor with a
// brotli encoder and klauspost's gzip in place of the standard library one.
// Upload responses are tiny and never compressed.
package server

import (
	"io"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzip"
)

const compressionLevel = 5

// compressibleTypes lists the static content types worth compressing.
// Images are already compressed.
var compressibleTypes = []string{
	"text/html",
	"text/css",
	"text/plain",
	"application/javascript",
	"application/wasm",
}

func newCompressor() *middleware.Compressor {
	c := middleware.NewCompressor(compressionLevel, compressibleTypes...)
	c.SetEncoder("gzip", func(w io.Writer, level int) io.Writer {
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil
		}
		return gw
	})
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	return c
}
