package httpapi

import (
	"context"
	"net/http"
	"time"
)

// requestTimeout bounds how long a single handler may hold a pooled
// connection, so one slow request can't starve the pool of the bounded
// connections spec §5 requires.
const requestTimeout = 25 * time.Second

// timeoutMiddleware derives a deadline-bound context from the inbound
// request for every handler beneath it.
func timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// maxBodyBytes bounds ingest request bodies; a run tree with a reasonable
// step/decision/signal count fits comfortably under 1 MiB.
const maxBodyBytes int64 = 1 << 20

// maxBodySizeMiddleware rejects oversized write bodies outright when
// Content-Length is known, and wraps the body with http.MaxBytesReader as a
// backstop against chunked or unannounced payloads.
func maxBodySizeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.ContentLength > maxBodyBytes {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Detail: "request body too large"})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
