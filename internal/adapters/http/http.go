// Package http exposes the collected metrics over a small JSON API.
package http

import (
	"net/http"
	"time"
)

// NewServer has no WriteTimeout so that websocket connections on /ws are not
// cut off; handlers bound their own work with the request context.
func NewServer(handler http.Handler, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
