package handlers

import (
	"bytes"
	"log"
	"net/http"

	"github.com/a-h/templ"
)

// render buffers the component so a failure can still produce a clean 500.
func render(w http.ResponseWriter, r *http.Request, component templ.Component) {
	var buf bytes.Buffer
	if err := component.Render(r.Context(), &buf); err != nil {
		log.Printf("render error path=%s err=%v", r.URL.Path, err)
		http.Error(w, "failed to render", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
