// Copyright 2026 The LexGuard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// adminApp serves the built admin single page application. Assets are
// served as files; any other path is a client-side route and gets
// index.html. Expects the /admin prefix to be stripped already.
func adminApp(static fs.FS) http.Handler {
	files := http.FileServerFS(static)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" && isFile(static, name) {
			files.ServeHTTP(w, r)
			return
		}
		serveIndex(w, static)
	})
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}

func serveIndex(w http.ResponseWriter, static fs.FS) {
	index, err := fs.ReadFile(static, "index.html")
	if err != nil {
		http.Error(w, "admin app not built", http.StatusInternalServerError)
		return
	}
	// Gating happens per request, so the shell must never be cached.
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(index)
}
