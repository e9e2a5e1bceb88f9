package server

import "strings"

const defaultContentType = "application/octet-stream"

// ContentTypeForExt maps a file extension to the Content-Type used for static
// responses. The extension may be given with or without its leading dot and is
// matched case-sensitively.
func ContentTypeForExt(ext string) string {
	switch strings.TrimPrefix(ext, ".") {
	case "css":
		return "text/css"
	case "js":
		return "application/javascript"
	case "wasm":
		return "application/wasm"
	case "html":
		return "text/html"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return defaultContentType
	}
}
