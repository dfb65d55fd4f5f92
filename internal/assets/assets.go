// Package assets packs the single-page UI the WebView host loads, served by
// the HTTP/WS Server for every path other than /transmission/rpc and /ws.
package assets

import (
	"embed"
	"io/fs"
	"mime"
	"path"
	"strings"
)

//go:embed static
var packed embed.FS

const root = "static"

// Provider resolves a request path to packed bytes and a content type.
type Provider struct {
	fs fs.FS
}

// New returns a Provider backed by the bytes embedded at build time.
func New() *Provider {
	sub, _ := fs.Sub(packed, root)
	return &Provider{fs: sub}
}

// Open resolves reqPath (already stripped of its query string) to packed
// bytes. A path with no file extension that doesn't resolve falls back to
// index.html for client-side routing; a path with an extension that
// doesn't resolve is a real miss.
func (p *Provider) Open(reqPath string) (data []byte, contentType string, ok bool) {
	clean := strings.TrimPrefix(path.Clean("/"+reqPath), "/")
	if clean == "" || clean == "." {
		clean = "index.html"
	}

	data, err := fs.ReadFile(p.fs, clean)
	if err != nil {
		if path.Ext(clean) != "" {
			return nil, "", false
		}
		data, err = fs.ReadFile(p.fs, "index.html")
		if err != nil {
			return nil, "", false
		}
		clean = "index.html"
	}

	ctype := mime.TypeByExtension(path.Ext(clean))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	return data, ctype, true
}
