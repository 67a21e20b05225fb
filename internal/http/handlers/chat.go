package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/chatrdv/platform/internal/ai"
	"github.com/chatrdv/platform/internal/booking"
	"github.com/chatrdv/platform/internal/conversation"
	"github.com/chatrdv/platform/internal/tenancy"
	"github.com/chatrdv/platform/pkg/logging"
)

// ChatService runs one conversational turn. *booking.Orchestrator satisfies it.
type ChatService interface {
	HandleMessage(ctx context.Context, in booking.ChatInput) (*booking.ChatOutput, error)
}

// HistoryStore replays and clears session transcripts.
type HistoryStore interface {
	List(ctx context.Context, tenantID, sessionID string) ([]conversation.Turn, error)
	Clear(ctx context.Context, tenantID, sessionID string) (int64, error)
}

// SettingsReader exposes the tenant's widget-facing configuration.
type SettingsReader interface {
	Get(ctx context.Context, tenantID string) (*tenancy.Settings, error)
}

// ChatHandler serves the visitor-facing chat API.
type ChatHandler struct {
	chat     ChatService
	history  HistoryStore
	settings SettingsReader
	logger   *logging.Logger
}

func NewChatHandler(chat ChatService, history HistoryStore, settings SettingsReader, logger *logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{chat: chat, history: history, settings: settings, logger: logger}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	AgentID   string `json:"agent_id,omitempty"`
}

type sessionResponse struct {
	SessionID      string `json:"session_id"`
	WelcomeMessage string `json:"welcome_message,omitempty"`
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// StartSession hands the widget a session id and the tenant's welcome text.
func (h *ChatHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	resp := sessionResponse{SessionID: generateSessionID()}
	if h.settings != nil {
		if settings, err := h.settings.Get(r.Context(), tenantID); err == nil {
			resp.WelcomeMessage = settings.WelcomeMessage
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// PostMessage runs one chat turn.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	in := booking.ChatInput{
		TenantID:  tenantID,
		SessionID: req.SessionID,
		Message:   req.Message,
	}
	if req.AgentID != "" {
		if id, err := uuid.Parse(req.AgentID); err == nil {
			in.VisitorChoice = &id
		}
	}

	out, err := h.chat.HandleMessage(r.Context(), in)
	if err != nil {
		if errors.Is(err, ai.ErrAllProvidersDown) {
			http.Error(w, "assistant temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("chat turn failed", "tenant_id", tenantID, "session_id", req.SessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		SessionID string `json:"session_id"`
		*booking.ChatOutput
	}{SessionID: req.SessionID, ChatOutput: out})
}

// GetHistory replays a session transcript in chronological order.
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session query parameter is required", http.StatusBadRequest)
		return
	}

	turns, err := h.history.List(r.Context(), tenantID, sessionID)
	if err != nil {
		h.logger.Error("history load failed", "tenant_id", tenantID, "session_id", sessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "turns": turns})
}

// ClearSession deletes a session transcript.
func (h *ChatHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session query parameter is required", http.StatusBadRequest)
		return
	}

	deleted, err := h.history.Clear(r.Context(), tenantID, sessionID)
	if err != nil {
		h.logger.Error("session clear failed", "tenant_id", tenantID, "session_id", sessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
