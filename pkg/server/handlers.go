package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nstogner/cortex/pkg/controller"
	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/memory"
	"github.com/nstogner/cortex/pkg/store"
)

var errMissingContent = errors.New("content is required")

// --- Sessions ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListSessions(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	s.jsonResponse(w, http.StatusOK, sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var sess domain.Session
	if err := json.NewDecoder(r.Body).Decode(&sess); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if sess.ID == "" {
		sess.ID = store.NewID()
	}
	if sess.CompactionThreshold == 0 {
		sess.CompactionThreshold = controller.DefaultCompactionThreshold
	}
	if err := s.sessions.CreateSession(r.Context(), &sess); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var sess domain.Session
	if err := json.NewDecoder(r.Body).Decode(&sess); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	sess.ID = id
	if err := s.sessions.UpdateSession(r.Context(), &sess); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.DeleteSession(r.Context(), id); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.controller.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Conversation ---

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var msg struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		s.errorResponse(w, http.StatusBadRequest, errMissingContent)
		return
	}
	if _, err := s.sessions.GetSession(r.Context(), id); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	ev := &domain.Event{SessionID: id, Kind: domain.EventUserMessage, Content: msg.Content}
	if err := s.sessions.Append(r.Context(), ev); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, ev)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var (
		events []domain.Event
		err    error
	)
	if after := r.URL.Query().Get("after"); after != "" {
		events, err = s.sessions.EventsAfter(r.Context(), id, after)
	} else {
		events, err = s.sessions.Events(r.Context(), id, intParam(r, "limit", 0))
	}
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	s.jsonResponse(w, http.StatusOK, events)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.sessions.GetSession(r.Context(), id); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.controller.Runtime(id).State())
}

func (s *Server) handleCompileContext(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := s.controller.Compile(r.Context(), id, r.URL.Query().Get("message"))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"history":            res.History,
		"system_instruction": res.SystemInstruction,
	})
}

// --- Artifacts ---

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	arts, err := s.artifacts.Active(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, arts)
}

func (s *Server) handleAttachArtifact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		MimeType string `json:"mime_type"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	a := &domain.Artifact{
		SessionID: r.PathValue("id"),
		Name:      req.Name,
		MimeType:  req.MimeType,
		Data:      []byte(req.Content),
	}
	if err := s.artifacts.Attach(r.Context(), a); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, a)
}

func (s *Server) handleDetachArtifact(w http.ResponseWriter, r *http.Request) {
	if err := s.artifacts.Detach(r.Context(), r.PathValue("id"), r.PathValue("artifactID")); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Facts ---

func (s *Server) handleListFacts(w http.ResponseWriter, r *http.Request) {
	facts, err := s.controller.Facts(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, facts)
}

func (s *Server) handleAddFact(w http.ResponseWriter, r *http.Request) {
	var f domain.FactChunk
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if err := s.controller.AddFact(r.Context(), r.PathValue("id"), &f); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, f)
}

func (s *Server) handleDeleteFact(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.RemoveFact(r.Context(), r.PathValue("id")); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Memory ---

func (s *Server) handleListMemory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.memory.Records(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, recs)
}

func (s *Server) handleStoreMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key  string   `json:"key"`
		Text string   `json:"text"`
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.memory.Store(r.Context(), req.Key, req.Text, memory.WithTags(req.Tags...))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, rec)
}

func (s *Server) handleSearchMemory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := intParam(r, "limit", 5)

	var (
		results []string
		err     error
	)
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "keyword":
		results, err = s.memory.Query(r.Context(), q, limit)
	case "semantic":
		results, err = s.memory.SemanticQuery(r.Context(), q, limit)
	default:
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("unknown search mode %q", mode))
		return
	}
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	if results == nil {
		results = []string{}
	}
	s.jsonResponse(w, http.StatusOK, results)
}

func (s *Server) handleWipeMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.memory.Wipe(r.Context()); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Layers ---

func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.layers.All())
}

func (s *Server) handleDefineLayer(w http.ResponseWriter, r *http.Request) {
	var l domain.Layer
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if err := s.layers.Define(r.Context(), l); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	defined, _ := s.layers.Get(strings.TrimSpace(l.ID))
	s.jsonResponse(w, http.StatusCreated, defined)
}

func (s *Server) handleRemoveLayer(w http.ResponseWriter, r *http.Request) {
	if err := s.layers.Remove(r.Context(), r.PathValue("id")); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Tools and models ---

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.tools.Declarations(s.tools.Names()))
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.provider.List(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, models)
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
