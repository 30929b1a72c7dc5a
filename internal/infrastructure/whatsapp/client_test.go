package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"AdvisoryDispatch/internal/channel"
	"AdvisoryDispatch/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.WhatsAppConfig{
		BaseURL:           baseURL,
		PhoneNumberID:     "1234567890",
		BusinessAccountID: "9876543210",
		Token:             "test-token",
	})
}

func TestSendTextParsesMessageID(t *testing.T) {
	t.Parallel()

	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1234567890/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.ABC123"}},
		})
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).SendText(context.Background(), "919999999999", "hello")
	if err != nil {
		t.Fatalf("send text: %v", err)
	}
	if id != "wamid.ABC123" {
		t.Fatalf("message id %q", id)
	}
	if gotPayload["to"] != "919999999999" || gotPayload["type"] != "text" {
		t.Fatalf("unexpected payload: %+v", gotPayload)
	}
}

func TestSendTemplateBuildsComponents(t *testing.T) {
	t.Parallel()

	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.T1"}},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendTemplate(context.Background(), "919999999999", "daily_update", "", []string{"Ravi"})
	if err != nil {
		t.Fatalf("send template: %v", err)
	}

	tmpl, _ := gotPayload["template"].(map[string]any)
	if tmpl["name"] != "daily_update" {
		t.Fatalf("template name: %+v", tmpl)
	}
	lang, _ := tmpl["language"].(map[string]any)
	if lang["code"] != "en" {
		t.Fatalf("empty language must default to en, got %+v", lang)
	}
}

func TestClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid recipient", "code": 131026},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendText(context.Background(), "bad", "hello")
	if err == nil || !channel.IsPermanent(err) {
		t.Fatalf("4xx must be permanent, got %v", err)
	}
	if !strings.Contains(err.Error(), "131026") {
		t.Fatalf("provider code missing from error: %v", err)
	}
}

func TestServerAndThrottleErrorsAreTransient(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := newTestClient(srv.URL).SendText(context.Background(), "919999999999", "hello")
		srv.Close()

		if err == nil || channel.IsPermanent(err) {
			t.Fatalf("status %d must be transient, got %v", status, err)
		}
	}
}

func TestMisconfiguredClientFailsPermanently(t *testing.T) {
	t.Parallel()

	c := NewClient(config.WhatsAppConfig{BaseURL: "http://localhost"})
	_, err := c.SendText(context.Background(), "919999999999", "hello")
	if err == nil || !channel.IsPermanent(err) {
		t.Fatalf("missing credentials must fail permanently, got %v", err)
	}
}

func TestTemplateExists(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/9876543210/message_templates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"name": "daily_update"}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ok, err := c.TemplateExists(context.Background(), "daily_update")
	if err != nil || !ok {
		t.Fatalf("expected template to exist: ok=%v err=%v", ok, err)
	}
	ok, err = c.TemplateExists(context.Background(), "missing_one")
	if err != nil || ok {
		t.Fatalf("expected template to be absent: ok=%v err=%v", ok, err)
	}
}
