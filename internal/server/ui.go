package server

import (
	"io/fs"
	"net/http"
	"strings"
)

// spaHandler serves the map front end from fsys. Any path not matching a
// real file returns index.html so the client can route it.
func spaHandler(fsys fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		if f, err := fsys.Open(path); err != nil {
			path = "index.html"
		} else {
			f.Close()
		}

		http.ServeFileFS(w, r, fsys, path)
	}
}
