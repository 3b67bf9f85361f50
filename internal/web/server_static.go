package web

import (
	"io/fs"
	"net/http"
	"os"

	webassets "github.com/sibylchat/sibyl/web"
)

// staticHandler serves the frontend. The embedded assets are used
// unless a static directory override is configured.
//
// Missing files get a generic 404 with no path disclosure.
func (s *Server) staticHandler() http.Handler {
	var staticFS fs.FS
	if s.staticDir != "" {
		staticFS = os.DirFS(s.staticDir)
	} else {
		sub, err := fs.Sub(webassets.StaticFS, "static")
		if err != nil {
			s.logger.Error("embedded static assets unavailable", "error", err)
			return http.NotFoundHandler()
		}
		staticFS = sub
	}

	fileServer := http.FileServer(http.FS(staticFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index.html"
		}

		fsPath := path
		if len(fsPath) > 0 && fsPath[0] == '/' {
			fsPath = fsPath[1:]
		}

		f, err := staticFS.Open(fsPath)
		if err != nil {
			s.logger.Debug("static file not found", "path", fsPath)
			http.NotFound(w, r)
			return
		}
		f.Close()

		r.URL.Path = path
		fileServer.ServeHTTP(w, r)
	})
}
