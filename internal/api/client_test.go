package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_assistant_bot/internal/config"
)

func TestClientGetSendsHeadersAndParams(t *testing.T) {
	var gotAuth, gotContentType, gotPath, gotQuery, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(RequestIDHeader)
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	client := NewClient(config.Config{APIBaseURL: srv.URL + "/", APIKey: "secret"}, logrus.NewEntry(logger))

	body, err := client.Get(context.Background(), "/items", url.Values{"page": {"2"}})
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body %s", body)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected json content type, got %q", gotContentType)
	}
	if gotPath != "/items" || gotQuery != "page=2" {
		t.Fatalf("unexpected request %s?%s", gotPath, gotQuery)
	}

	if _, err := uuid.Parse(gotRequestID); err != nil {
		t.Fatalf("expected uuid request id, got %q", gotRequestID)
	}

	first := hook.AllEntries()[0]
	if first.Level != logrus.DebugLevel || first.Data["event"] != "api_request" {
		t.Fatalf("expected debug request log, got %+v", first)
	}
	if first.Data["request_id"] != gotRequestID {
		t.Fatalf("expected request_id %q in log, got %v", gotRequestID, first.Data["request_id"])
	}
}

func TestClientOmitsAuthorizationWithoutKey(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(config.Config{APIBaseURL: srv.URL}, nil)
	if _, err := client.Get(context.Background(), "list", nil); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if sawAuth {
		t.Fatalf("expected no Authorization header without API key")
	}
}

func TestClientPostEncodesJSON(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	logger, _ := logtest.NewNullLogger()
	client := NewClient(config.Config{APIBaseURL: srv.URL}, logrus.NewEntry(logger))

	body, err := client.Post(context.Background(), "things", map[string]string{"name": "widget"})
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if string(body) != `{"id":1}` || got["name"] != "widget" {
		t.Fatalf("unexpected exchange: body=%s sent=%v", body, got)
	}
}

func TestClientEmptyBodyIsInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	logger, _ := logtest.NewNullLogger()
	client := NewClient(config.Config{APIBaseURL: srv.URL}, logrus.NewEntry(logger))

	if _, err := client.Get(context.Background(), "empty", nil); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestClientStatusErrorLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	logger, hook := logtest.NewNullLogger()
	client := NewClient(config.Config{APIBaseURL: srv.URL}, logrus.NewEntry(logger))

	_, err := client.Get(context.Background(), "fail", nil)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	var sawStatus bool
	for _, entry := range hook.AllEntries() {
		if entry.Data["event"] == "api_response_error" && entry.Data["status"] == http.StatusInternalServerError {
			sawStatus = true
		}
	}
	if !sawStatus {
		t.Fatalf("expected api_response_error log with status 500")
	}
}

func TestValidateResponse(t *testing.T) {
	if _, err := ValidateResponse(nil); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse for nil response, got %v", err)
	}
	if _, err := ValidateResponse(&Response{StatusCode: 200}); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse for empty body, got %v", err)
	}

	body, err := ValidateResponse(&Response{StatusCode: 200, Body: []byte(`{"a":1}`)})
	if err != nil || string(body) != `{"a":1}` {
		t.Fatalf("expected body passthrough, got %s (%v)", body, err)
	}
}
