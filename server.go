package msgchain

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Server exposes a Log over HTTP so replicas can pull and push thread
// entries. The body format everywhere is the export stream of
// length-prefixed canonical entries; pushed entries are admitted
// through the guarded path and rejected with 409 when they do not
// continue the stored chain.
type Server struct {
	log       *Log
	tlsConfig *tls.Config
}

// NewServer creates a sync server backed by a Log.
func NewServer(l *Log) *Server {
	return &Server{log: l}
}

// SetTLSConfig clones cfg and stores it for use when serving HTTPS requests.
// If cfg is nil a default configuration will be used.
func (s *Server) SetTLSConfig(cfg *tls.Config) {
	if cfg == nil {
		s.tlsConfig = nil
		return
	}
	s.tlsConfig = cfg.Clone()
}

// HandleThreads responds with the thread registry as an export-style
// binary stream: per thread, [8]byte created-at, [4]byte name length,
// name bytes.
func (s *Server) HandleThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.log.store.Threads()
	if err != nil {
		http.Error(w, fmt.Sprintf("list threads: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	if err := writeThreadInfos(w, threads); err != nil {
		// Headers already sent; nothing left to report to the client.
		return
	}
}

// HandlePull streams every entry of the requested thread.
func (s *Server) HandlePull(w http.ResponseWriter, r *http.Request) {
	thread := r.PathValue("thread")

	entries, err := s.log.Messages(thread)
	if err != nil {
		http.Error(w, fmt.Sprintf("list entries: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_ = WriteEntries(w, entries)
}

// HandlePush admits entries from the request body into the thread.
// Entries that fail signature or linkage checks yield 409 Conflict;
// malformed streams yield 400.
func (s *Server) HandlePush(w http.ResponseWriter, r *http.Request) {
	thread := r.PathValue("thread")

	entries, err := ReadEntries(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("decode entries: %v", err), http.StatusBadRequest)
		return
	}
	for i, e := range entries {
		if _, err := s.log.AppendSigned(thread, e); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrBadSignature) || errors.Is(err, ErrSequenceMismatch) || errors.Is(err, ErrBrokenLink) {
				status = http.StatusConflict
			}
			http.Error(w, fmt.Sprintf("entry %d: %v", i, err), status)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// HandleCount responds with the thread's entry count in decimal text.
func (s *Server) HandleCount(w http.ResponseWriter, r *http.Request) {
	thread := r.PathValue("thread")

	n, err := s.log.Count(thread)
	if err != nil {
		http.Error(w, fmt.Sprintf("count entries: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(strconv.Itoa(n)))
}

// SetupRoutes configures HTTP routes for the sync server.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/threads", s.HandleThreads)
	mux.HandleFunc("GET /api/v1/threads/{thread}/entries", s.HandlePull)
	mux.HandleFunc("POST /api/v1/threads/{thread}/entries", s.HandlePush)
	mux.HandleFunc("GET /api/v1/threads/{thread}/count", s.HandleCount)
}

// Handler returns an http.Handler serving all sync routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) tlsConfigWithDefaults() *tls.Config {
	if s.tlsConfig == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12}
	}
	cfg := s.tlsConfig.Clone()
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	return cfg
}

// ListenAndServeTLS starts the HTTPS sync server.
func (s *Server) ListenAndServeTLS(addr, certFile, keyFile string) error {
	server := &http.Server{
		Addr:      addr,
		Handler:   s.Handler(),
		TLSConfig: s.tlsConfigWithDefaults(),
	}
	return server.ListenAndServeTLS(certFile, keyFile)
}
