package httpserver

import (
	"log"
	"net/http"
	"time"

	"image-check/api/internal/handle"
)

func NewMux(h *handle.Handle) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/image/check", h.Check)
	return mux
}

func StartHTTP(addr string, h *handle.Handle) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("image-check listening on %s", addr)
	return srv.ListenAndServe()
}
