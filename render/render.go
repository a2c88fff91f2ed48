// Package render turns captured page state into screenshot images. The
// default implementation drives a local browser over the DevTools protocol;
// embedders can supply their own Renderer instead.
package render

import (
	"context"
	"encoding/base64"
	"errors"
)

// ErrUnavailable reports that no renderer could be reached for this
// attempt. Callers treat it as "no screenshot", never as a capture failure.
var ErrUnavailable = errors.New("renderer unavailable")

// Document is the page state handed to a renderer. URL identifies a live
// page; HTML, when non-empty, supplies sanitized markup to rasterize
// instead of whatever the target currently shows.
type Document struct {
	URL    string
	HTML   string
	Width  int
	Height int
}

// Renderer rasterizes a document to PNG bytes.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// DataURI encodes PNG bytes for embedding in a report screenshot field.
func DataURI(png []byte) string {
	if len(png) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
