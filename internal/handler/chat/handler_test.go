package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/moodchat/internal/model/persona"
	"github.com/zhouzirui/moodchat/internal/service/ai"
	chatservice "github.com/zhouzirui/moodchat/internal/service/chat"
	"github.com/zhouzirui/moodchat/internal/store"
)

type fixedReplier struct {
	reply ai.Reply
	err   error
}

func (f fixedReplier) Name() string { return "fixed" }

func (f fixedReplier) Reply(context.Context, ai.Request) (ai.Reply, error) {
	return f.reply, f.err
}

func setupRouter(replier ai.Replier) *chi.Mux {
	p, _ := persona.NewMemoryStore(persona.Seed()).FindByID("charlotte")
	svc := chatservice.NewService(store.NewMemory(), replier, p)
	handler := New(svc, nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %q", resp.Body.String())
	}
	return resp, out
}

func TestSendReturnsReply(t *testing.T) {
	r := setupRouter(fixedReplier{reply: ai.Reply{Text: "hi there", Emotion: "happy", Intensity: 0.8}})

	resp, out := do(t, r, http.MethodPost, "/send", `{"message":"hello","prompt":""}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if out["reply"] != "hi there" || out["emotion"] != "happy" || out["intensity"] != 0.8 {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestSendMissingMessage(t *testing.T) {
	r := setupRouter(fixedReplier{})

	for _, body := range []string{`{"message":"   "}`, `{}`, ""} {
		resp, out := do(t, r, http.MethodPost, "/send", body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, resp.Code)
		}
		if out["error"] != "Message is required" {
			t.Fatalf("body %q: unexpected error %v", body, out["error"])
		}
	}
}

func TestSendInvalidJSON(t *testing.T) {
	r := setupRouter(fixedReplier{})
	resp, out := do(t, r, http.MethodPost, "/send", `{"message":`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if msg, _ := out["error"].(string); !strings.HasPrefix(msg, "invalid request body") {
		t.Fatalf("unexpected error %v", out["error"])
	}
}

func TestSendReplierFailure(t *testing.T) {
	r := setupRouter(fixedReplier{err: errors.New("rate limited")})

	resp, out := do(t, r, http.MethodPost, "/send", `{"message":"hello"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if msg, _ := out["error"].(string); !strings.Contains(msg, "rate limited") {
		t.Fatalf("unexpected error %v", out["error"])
	}
}

func TestCurrentEmotionTracksLastReply(t *testing.T) {
	r := setupRouter(fixedReplier{reply: ai.Reply{Text: "hmm", Emotion: "curious", Intensity: 0.4}})

	_, out := do(t, r, http.MethodGet, "/current-emotion", "")
	if out["emotion"] != "happy" || out["intensity"] != 0.7 || out["timestamp"] == "" {
		t.Fatalf("unexpected initial emotion %v", out)
	}

	do(t, r, http.MethodPost, "/send", `{"message":"why?"}`)

	_, out = do(t, r, http.MethodGet, "/current-emotion", "")
	if out["emotion"] != "curious" || out["intensity"] != 0.4 {
		t.Fatalf("unexpected emotion after reply %v", out)
	}
}

func TestAnalyzeConversation(t *testing.T) {
	r := setupRouter(fixedReplier{})

	resp, out := do(t, r, http.MethodPost, "/analyze-conversation", `{"conversation":[{"sender":"user","text":"Tell me about your research please"},{"sender":"bot","text":"Sure!"}]}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	analysis, ok := out["analysis"].(map[string]any)
	if !ok || out["success"] != true {
		t.Fatalf("unexpected body %v", out)
	}
	if analysis["title"] != "Tell me about your research" {
		t.Fatalf("unexpected title %v", analysis["title"])
	}
}

func TestAnalyzeAndSaveRequireConversation(t *testing.T) {
	r := setupRouter(fixedReplier{})

	for _, path := range []string{"/analyze-conversation", "/save"} {
		resp, out := do(t, r, http.MethodPost, path, `{"conversation":[]}`)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, resp.Code)
		}
		if out["error"] != "No conversation data provided" {
			t.Fatalf("%s: unexpected error %v", path, out["error"])
		}
	}
}

func TestSaveThenList(t *testing.T) {
	r := setupRouter(fixedReplier{})

	resp, out := do(t, r, http.MethodPost, "/save", `{"conversation":[{"sender":"user","text":"hi"}],"title":"Greeting","description":"d","quality_score":0.9}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if out["success"] != true || out["conversation_id"] == "" || out["message"] != "Conversation saved to database successfully!" {
		t.Fatalf("unexpected save body %v", out)
	}

	_, out = do(t, r, http.MethodGet, "/saved-conversations", "")
	list, ok := out["conversations"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("unexpected list %v", out)
	}
	first := list[0].(map[string]any)
	if first["title"] != "Greeting" || first["quality_score"] != 0.9 {
		t.Fatalf("unexpected conversation %v", first)
	}
	if _, present := first["conversation_data"]; present {
		t.Fatalf("listing must not include message bodies")
	}
}

func TestPopulateInitialData(t *testing.T) {
	r := setupRouter(fixedReplier{})

	resp, out := do(t, r, http.MethodPost, "/populate-initial-data", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if out["success"] != true || out["message"] != "Initial data populated successfully" {
		t.Fatalf("unexpected body %v", out)
	}
}
