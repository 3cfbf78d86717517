package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nstogner/cortex/pkg/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame types pushed to chat clients.
const (
	frameEvent = "event"
	frameState = "state"
)

type frame struct {
	Type  string               `json:"type"`
	Event *domain.Event        `json:"event,omitempty"`
	State *domain.AgenticState `json:"state,omitempty"`
}

func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		http.Error(w, "Missing session ID", http.StatusBadRequest)
		return
	}

	// Verify the session exists.
	if _, err := s.sessions.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	done := make(chan struct{})
	updates := s.sessions.Subscribe()
	states, cancelStates := s.controller.Runtime(sessionID).Subscribe()
	defer cancelStates()

	// Send initial stream state.
	sentIDs := make(map[string]bool)
	if err := s.syncEvents(ws, sessionID, sentIDs); err != nil {
		slog.Error("Failed initial event sync", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)

	// Writer goroutine: pushes new events and agent state to the client.
	go func() {
		defer wg.Done()
		defer ws.Close()

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case id := <-updates:
				if id == sessionID {
					if err := s.syncEvents(ws, sessionID, sentIDs); err != nil {
						slog.Error("Failed event sync", "error", err)
						return
					}
				}
			case st, ok := <-states:
				if !ok {
					return
				}
				if err := ws.WriteJSON(frame{Type: frameState, State: &st}); err != nil {
					slog.Error("Failed state push", "error", err)
					return
				}
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: receives user messages.
	for {
		var msg struct {
			Content string `json:"content"`
		}
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Error("WebSocket read error", "error", err)
			}
			break
		}

		if strings.TrimSpace(msg.Content) != "" {
			if err := s.sessions.Append(r.Context(), &domain.Event{
				SessionID: sessionID,
				Kind:      domain.EventUserMessage,
				Content:   msg.Content,
			}); err != nil {
				slog.Error("Failed to append user message", "error", err)
			}
		}
	}

	close(done)
	wg.Wait()
}

func (s *Server) syncEvents(ws *websocket.Conn, sessionID string, sentIDs map[string]bool) error {
	events, err := s.sessions.Events(context.Background(), sessionID, 0)
	if err != nil {
		return err
	}

	for i := range events {
		e := events[i]
		if !sentIDs[e.ID] {
			if err := ws.WriteJSON(frame{Type: frameEvent, Event: &e}); err != nil {
				return err
			}
			sentIDs[e.ID] = true
		}
	}
	return nil
}
