package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	negotiatorx "github.com/tanpawarit/chative-procurement/agent/agents/negotiator"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeConversations struct {
	mu        sync.Mutex
	posted    []string
	respondTo string
	reply     string
	err       error
}

func (f *fakeConversations) StartConversation(_ context.Context, org, vendor, topic string) (contractx.Conversation, error) {
	if org == "" && vendor == "" {
		return contractx.Conversation{}, fmt.Errorf("%w: organization or vendor is required", contractx.ErrMissingContext)
	}
	return contractx.Conversation{ID: "conv-1", OrganizationID: org, VendorID: vendor, Topic: topic}, nil
}

func (f *fakeConversations) PostUserMessage(_ context.Context, id, content string) (contractx.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, content)
	return contractx.Message{ID: "m-1", ConversationID: id, Role: contractx.RoleUser, Content: content}, nil
}

func (f *fakeConversations) RespondTurn(_ context.Context, id string) (negotiatorx.TurnResult, error) {
	f.mu.Lock()
	f.respondTo = id
	f.mu.Unlock()
	if f.err != nil {
		return negotiatorx.TurnResult{}, f.err
	}
	return negotiatorx.TurnResult{Reply: f.reply, Outcome: negotiatorx.OutcomeFinalReply}, nil
}

type fakeMissions struct {
	got contractx.MissionRequest
	err error
}

func (f *fakeMissions) Run(_ context.Context, req contractx.MissionRequest) (contractx.MissionResult, error) {
	f.got = req
	if f.err != nil {
		return contractx.MissionResult{}, f.err
	}
	return contractx.MissionResult{
		Offers:            []contractx.Offer{{VendorID: "v1", TotalAmount: 80}},
		RecommendedVendor: "v1",
	}, nil
}

func newTestServer(t *testing.T, conv *fakeConversations, missions *fakeMissions) http.Handler {
	t.Helper()
	srv, err := NewServer(conv, missions, Config{})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, out
}

func TestRespondPostsMessageThenRunsTurn(t *testing.T) {
	t.Parallel()

	conv := &fakeConversations{reply: "We have hex bolts."}
	h := newTestServer(t, conv, &fakeMissions{})

	rec, out := do(t, h, http.MethodPost, "/v1/conversations/conv-9/respond", `{"content":"do you have bolts?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if out["content"] != "We have hex bolts." || out["ok"] != true {
		t.Fatalf("unexpected body: %#v", out)
	}
	if len(conv.posted) != 1 || conv.posted[0] != "do you have bolts?" {
		t.Fatalf("posted = %#v", conv.posted)
	}
	if conv.respondTo != "conv-9" {
		t.Fatalf("respondTo = %s", conv.respondTo)
	}
}

func TestRespondWithoutBodyOnlyRunsTurn(t *testing.T) {
	t.Parallel()

	conv := &fakeConversations{reply: "ok"}
	h := newTestServer(t, conv, &fakeMissions{})

	rec, _ := do(t, h, http.MethodPost, "/v1/conversations/conv-1/respond", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(conv.posted) != 0 {
		t.Fatalf("expected no posted message, got %#v", conv.posted)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: fmt.Errorf("%w: conversation id is required", contractx.ErrValidation), want: http.StatusBadRequest},
		{name: "not found", err: fmt.Errorf("%w: conversation x", contractx.ErrNotFound), want: http.StatusNotFound},
		{name: "missing context", err: contractx.ErrMissingContext, want: http.StatusUnprocessableEntity},
		{name: "configuration", err: fmt.Errorf("%w: llm api key is required", contractx.ErrConfiguration), want: http.StatusInternalServerError},
		{name: "model", err: &contractx.LanguageModelError{Status: 429, Body: `{"error":"rate limited"}`}, want: http.StatusBadGateway},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newTestServer(t, &fakeConversations{err: tt.err}, &fakeMissions{})
			rec, out := do(t, h, http.MethodPost, "/v1/conversations/c/respond", "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if out["ok"] != false || out["error"] == "" {
				t.Fatalf("unexpected error body: %#v", out)
			}
		})
	}
}

func TestStartConversation(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &fakeConversations{}, &fakeMissions{})

	rec, out := do(t, h, http.MethodPost, "/v1/conversations", `{"organization_id":"org-1","vendor_id":"v1","topic":"Bolts"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	conv, _ := out["conversation"].(map[string]any)
	if conv["id"] != "conv-1" {
		t.Fatalf("unexpected conversation: %#v", out)
	}

	rec, _ = do(t, h, http.MethodPost, "/v1/conversations", `{}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	rec, _ = do(t, h, http.MethodPost, "/v1/conversations", `{"topic":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRunMission(t *testing.T) {
	t.Parallel()

	missions := &fakeMissions{}
	h := newTestServer(t, &fakeConversations{}, missions)

	rec, out := do(t, h, http.MethodPost, "/v1/missions", `{"organization_id":"org-1","items":[{"sku":"HX-100","quantity":10}],"shipping":{"address":"1 Main St"},"urgency":"urgent"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if out["recommended_vendor"] != "v1" {
		t.Fatalf("unexpected body: %#v", out)
	}
	if len(missions.got.Items) != 1 || missions.got.Items[0].Quantity != 10 || missions.got.Urgency != contractx.UrgencyUrgent {
		t.Fatalf("unexpected request: %#v", missions.got)
	}

	h = newTestServer(t, &fakeConversations{}, &fakeMissions{err: fmt.Errorf("%w: items required", contractx.ErrValidation)})
	rec, _ = do(t, h, http.MethodPost, "/v1/missions", `{"items":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(nil, &fakeMissions{}, Config{}); !errors.Is(err, contractx.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := NewServer(&fakeConversations{}, nil, Config{}); !errors.Is(err, contractx.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
