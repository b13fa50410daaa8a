// Package api exposes the request/response command endpoints: list,
// create, move and clear players, plus the map catalog listing.
// Request bodies are validated against the JSON Schemas in schemas/
// before any registry mutation.
package api

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"terrainview.dev/internal/maps"
	"terrainview.dev/internal/registry"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

type Server struct {
	store   *registry.Store
	mapsDir string
	log     *log.Logger

	createSchema *jsonschema.Schema
	moveSchema   *jsonschema.Schema
}

func NewServer(store *registry.Store, mapsDir string, logger *log.Logger) (*Server, error) {
	createSchema, err := compileSchema("schemas/create_player.schema.json")
	if err != nil {
		return nil, err
	}
	moveSchema, err := compileSchema("schemas/move_player.schema.json")
	if err != nil {
		return nil, err
	}
	return &Server{
		store:        store,
		mapsDir:      mapsDir,
		log:          logger,
		createSchema: createSchema,
		moveSchema:   moveSchema,
	}, nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	s, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return s, nil
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/players", s.handlePlayers)
	mux.HandleFunc("/api/players/move", s.handleMove)
	mux.HandleFunc("/api/players/clear", s.handleClear)
	mux.HandleFunc("/api/maps", s.handleMaps)
}

type createPlayerRequest struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

type movePlayerRequest struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Z  float64 `json:"z"`
}

func (s *Server) handlePlayers(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(rw, s.store.List())
	case http.MethodPost:
		var req createPlayerRequest
		if !s.decodeValid(rw, r, s.createSchema, &req) {
			return
		}
		writeJSON(rw, s.store.Create(req.X, req.Z))
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMove(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req movePlayerRequest
	if !s.decodeValid(rw, r, s.moveSchema, &req) {
		return
	}
	// Unknown id is a benign outcome, not an error.
	if p, ok := s.store.Move(req.ID, req.X, req.Z); ok {
		writeJSON(rw, fmt.Sprintf("Player %s moved to (%g, %g)", p.ID, p.X, p.Z))
	} else {
		writeJSON(rw, fmt.Sprintf("Player %s not found", req.ID))
	}
}

func (s *Server) handleClear(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.store.Clear()
	writeJSON(rw, "All players cleared")
}

func (s *Server) handleMaps(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(rw, maps.List(s.mapsDir, s.log))
}

// decodeValid reads the body, checks it against the schema and fills
// dst. A malformed body yields a 400 and no state change.
func (s *Server) decodeValid(rw http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, 1<<20))
	if err != nil {
		http.Error(rw, "read body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		http.Error(rw, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := schema.Validate(v); err != nil {
		http.Error(rw, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		http.Error(rw, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

// CORS wraps h with a permissive CORS policy; the viewer frontend is
// served from a separate origin during development.
func CORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Access-Control-Allow-Origin", "*")
		rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		rw.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(rw, r)
	})
}
