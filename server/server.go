package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/pharmvec/pharmvec/internal/types"
	"github.com/pharmvec/pharmvec/pkg/documents"
	"github.com/pharmvec/pharmvec/pkg/search"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the websocket frame for the live search endpoint.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

type Config struct {
	Port string
}

type Server struct {
	config    Config
	documents *documents.Service
	search    *search.Coordinator
	auth      types.Authenticator
}

func NewWithConfig(
	config Config,
	docs *documents.Service,
	coordinator *search.Coordinator,
	auth types.Authenticator,
) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}

	return &Server{
		config:    config,
		documents: docs,
		search:    coordinator,
		auth:      auth,
	}
}

// Handler builds the route table. Exposed separately from
// ListenAndServe so tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /documents", s.withAuth(s.handleCreate))
	mux.HandleFunc("GET /documents", s.withAuth(s.handleList))
	mux.HandleFunc("GET /documents/{id}", s.withAuth(s.handleGet))
	mux.HandleFunc("DELETE /documents/{id}", s.withAuth(s.handleDelete))
	mux.HandleFunc("POST /documents/search", s.withAuth(s.handleSearch))
	mux.HandleFunc("GET /ws", s.withAuth(s.handleWebSocket))

	return mux
}

func (s *Server) ListenAndServe() error {
	log.Printf("Starting server on port %s", s.config.Port)
	return http.ListenAndServe(":"+s.config.Port, s.Handler())
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, owner string)

// withAuth resolves the bearer token to an owner id and rejects the
// request with 401 when it cannot. Websocket clients cannot set an
// Authorization header from a browser, so a token query parameter is
// accepted as a fallback.
func (s *Server) withAuth(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		owner, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or missing token"})
			return
		}

		next(w, r, owner)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

type createRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, owner string) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	doc, err := s.documents.Create(r.Context(), owner, req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	// 202: the document is stored but not yet searchable. Clients poll
	// embedding_status to see it become ready or failed.
	writeJSON(w, http.StatusAccepted, doc)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, owner string) {
	docs, err := s.documents.List(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}

	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, owner string) {
	doc, err := s.documents.Get(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.documents.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, owner string) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	results, err := s.search.Search(r.Context(), owner, req.Query, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// handleWebSocket serves interactive search: each "search" frame gets
// a "results" frame back (or an "error" frame), so a UI can re-query
// on every keystroke over one connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, owner string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: "invalid message"})
			continue
		}

		if msg.Type != "search" {
			s.sendMessage(conn, Message{Type: "error", Content: "unknown message type: " + msg.Type})
			continue
		}

		results, err := s.search.Search(r.Context(), owner, msg.Content, 0)
		if err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: err.Error()})
			continue
		}

		s.sendMessage(conn, Message{Type: "results", Data: results})
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrBadQuery):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
