// Package server exposes the engine over HTTP: variant assignment, an
// event beacon, and token-protected results. It owns no analytics
// delivery and renders no UI.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/expstack/expstack/internal/engine"
)

type Server struct {
	engine    *engine.Engine
	port      int
	token     string
	tokenFile string
	router    *http.ServeMux
	startTime time.Time
}

func New(eng *engine.Engine, port int, tokenFile string) *Server {
	srv := &Server{
		engine:    eng,
		port:      port,
		token:     generateToken(),
		tokenFile: tokenFile,
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/assign", s.handleAssign)
	s.router.HandleFunc("/t", s.handleTrack)
	s.router.HandleFunc("/api/tests", s.handleTests)

	// Results are operational data; keep them behind the token.
	s.router.Handle("/api/results/", s.authMiddleware(http.HandlerFunc(s.handleResults)))
	s.router.Handle("/api/export", s.authMiddleware(http.HandlerFunc(s.handleExport)))
}

func (s *Server) Start() error {
	// Write token to file for other CLI invocations
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			fmt.Printf("Warning: failed to write token file: %v\n", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.port)

	fmt.Println()
	fmt.Printf("expstack running on http://localhost:%d\n", s.port)
	fmt.Printf("Results API: http://localhost:%d/api/results/<test-id>?token=%s\n", s.port, s.token)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
