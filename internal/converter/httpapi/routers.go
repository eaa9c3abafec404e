package httpapi

import (
	"net/http"

	"github.com/rs/zerolog"
)

type RouterConfig struct {
	CORSOrigins []string
	Logger      zerolog.Logger
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", h.Page)
	mux.HandleFunc("/health", h.Health)

	// GET catalog, POST {source, target}
	mux.HandleFunc("/formats", h.Formats)

	// POST multipart "file"
	mux.HandleFunc("/file", h.SelectFile)
	mux.HandleFunc("/file/clear", h.ClearFile)

	mux.HandleFunc("/convert", h.Convert)
	mux.HandleFunc("/status", h.Status)
	mux.HandleFunc("/download", h.Download)

	var handler http.Handler = mux
	handler = CORS(cfg.CORSOrigins)(handler)
	handler = AccessLog(cfg.Logger)(handler)
	handler = Recovery(cfg.Logger)(handler)
	return handler
}
