package handlers

import (
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

// SPAHandler serves the embedded UI. Unknown paths fall back to index.html.
func SPAHandler(staticFS fs.FS) http.HandlerFunc {
	fileServer := http.FileServer(http.FS(staticFS))

	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}

		name := strings.TrimPrefix(path, "/")
		if name == "" {
			name = "index.html"
		}

		w.Header().Set("Cache-Control", "no-cache")

		if f, err := staticFS.Open(name); err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}

		slog.Debug("SPA fallback", "path", path)

		index, err := staticFS.Open("index.html")
		if err != nil {
			slog.Error("failed to open SPA index.html", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer index.Close()

		stat, err := index.Stat()
		if err != nil {
			slog.Error("failed to stat SPA index.html", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		rs, ok := index.(io.ReadSeeker)
		if !ok {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(w, r, "index.html", stat.ModTime(), rs)
	}
}
