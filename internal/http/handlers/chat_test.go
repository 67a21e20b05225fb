package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chatrdv/platform/internal/ai"
	"github.com/chatrdv/platform/internal/booking"
	"github.com/chatrdv/platform/internal/conversation"
	"github.com/chatrdv/platform/internal/tenancy"
)

type fakeChat struct {
	out *booking.ChatOutput
	err error
	in  booking.ChatInput
}

func (f *fakeChat) HandleMessage(ctx context.Context, in booking.ChatInput) (*booking.ChatOutput, error) {
	f.in = in
	return f.out, f.err
}

type fakeHistory struct {
	turns   []conversation.Turn
	cleared int64
}

func (f *fakeHistory) List(ctx context.Context, tenantID, sessionID string) ([]conversation.Turn, error) {
	return f.turns, nil
}

func (f *fakeHistory) Clear(ctx context.Context, tenantID, sessionID string) (int64, error) {
	return f.cleared, nil
}

type fakeSettings struct{}

func (fakeSettings) Get(ctx context.Context, tenantID string) (*tenancy.Settings, error) {
	return tenancy.DefaultSettings(tenantID), nil
}

func withTenant(r *http.Request, tenantID string) *http.Request {
	return r.WithContext(tenancy.WithTenantID(r.Context(), tenantID))
}

func TestPostMessage(t *testing.T) {
	chat := &fakeChat{out: &booking.ChatOutput{Reply: "Bonjour !", Provider: "openai"}}
	h := NewChatHandler(chat, &fakeHistory{}, fakeSettings{}, nil)

	body := strings.NewReader(`{"session_id":"s1","message":"bonjour"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/chat/message", body), "t1")
	rec := httptest.NewRecorder()

	h.PostMessage(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if chat.in.TenantID != "t1" || chat.in.SessionID != "s1" {
		t.Fatalf("handler did not forward identity: %+v", chat.in)
	}

	var resp struct {
		SessionID string `json:"session_id"`
		Reply     string `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Reply != "Bonjour !" || resp.SessionID != "s1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestPostMessageGeneratesSessionID(t *testing.T) {
	chat := &fakeChat{out: &booking.ChatOutput{Reply: "ok"}}
	h := NewChatHandler(chat, &fakeHistory{}, fakeSettings{}, nil)

	body := strings.NewReader(`{"message":"bonjour"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/chat/message", body), "t1")
	rec := httptest.NewRecorder()

	h.PostMessage(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if chat.in.SessionID == "" {
		t.Fatal("handler must mint a session id when the widget has none")
	}
}

func TestPostMessageValidation(t *testing.T) {
	h := NewChatHandler(&fakeChat{}, &fakeHistory{}, fakeSettings{}, nil)

	// Missing tenant.
	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"message":"x"}`))
	rec := httptest.NewRecorder()
	h.PostMessage(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing tenant status = %d", rec.Code)
	}

	// Empty message.
	req = withTenant(httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"message":"  "}`)), "t1")
	rec = httptest.NewRecorder()
	h.PostMessage(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty message status = %d", rec.Code)
	}
}

func TestPostMessageAllProvidersDown(t *testing.T) {
	chat := &fakeChat{err: ai.ErrAllProvidersDown}
	h := NewChatHandler(chat, &fakeHistory{}, fakeSettings{}, nil)

	body := strings.NewReader(`{"session_id":"s1","message":"bonjour"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/chat/message", body), "t1")
	rec := httptest.NewRecorder()

	h.PostMessage(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestStartSessionReturnsWelcome(t *testing.T) {
	h := NewChatHandler(&fakeChat{}, &fakeHistory{}, fakeSettings{}, nil)

	req := withTenant(httptest.NewRequest(http.MethodPost, "/chat/session", nil), "t1")
	rec := httptest.NewRecorder()
	h.StartSession(rec, req)

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if resp.WelcomeMessage == "" {
		t.Fatal("expected the tenant welcome message")
	}
}

func TestGetHistoryAndClear(t *testing.T) {
	history := &fakeHistory{
		turns: []conversation.Turn{
			{Role: ai.RoleUser, Content: "bonjour"},
			{Role: ai.RoleAssistant, Content: "Bonjour !"},
		},
		cleared: 2,
	}
	h := NewChatHandler(&fakeChat{}, history, fakeSettings{}, nil)

	req := withTenant(httptest.NewRequest(http.MethodGet, "/chat/history?session=s1", nil), "t1")
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Bonjour !") {
		t.Fatal("history body missing turns")
	}

	req = withTenant(httptest.NewRequest(http.MethodDelete, "/chat/session?session=s1", nil), "t1")
	rec = httptest.NewRecorder()
	h.ClearSession(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "2") {
		t.Fatalf("clear status = %d body = %s", rec.Code, rec.Body.String())
	}

	// Session is required for both.
	req = withTenant(httptest.NewRequest(http.MethodGet, "/chat/history", nil), "t1")
	rec = httptest.NewRecorder()
	h.GetHistory(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("history without session status = %d", rec.Code)
	}
}
