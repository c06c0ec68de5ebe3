package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func probe(t *testing.T, server *Server, method string) *httptest.ResponseRecorder {
	t.Helper()

	rr := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rr, httptest.NewRequest(method, "/healthz", nil))
	return rr
}

func TestHealthBodies(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{
			name: "no checks",
			want: `{"status":"ok"}`,
		},
		{
			name: "nil pinger ignored",
			opts: []Option{WithCheck("mongo", nil)},
			want: `{"status":"ok"}`,
		},
		{
			name: "healthy mongo",
			opts: []Option{WithCheck("mongo", stubPinger{})},
			want: `{"status":"ok","checks":{"mongo":"ok"}}`,
		},
		{
			name: "failing mongo",
			opts: []Option{WithCheck("mongo", stubPinger{err: errors.New("mongo down")})},
			want: `{"status":"degraded","checks":{"mongo":"error"}}`,
		},
		{
			name: "one of two failing",
			opts: []Option{
				WithCheck("scheduler", stubPinger{}),
				WithCheck("mongo", stubPinger{err: errors.New("mongo down")}),
			},
			want: `{"status":"degraded","checks":{"mongo":"error","scheduler":"ok"}}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := logtest.NewNullLogger()
			rr := probe(t, NewServer(0, logrus.NewEntry(logger), tt.opts...), http.MethodGet)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected HTTP 200, got %d", rr.Code)
			}
			if body := strings.TrimSpace(rr.Body.String()); body != tt.want {
				t.Fatalf("unexpected body: %s", body)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected content-type application/json, got %s", ct)
			}
		})
	}
}

func TestHealthLogsFailedCheck(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	server := NewServer(0, logrus.NewEntry(logger), WithCheck("mongo", stubPinger{err: errors.New("mongo down")}))

	probe(t, server, http.MethodGet)

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel || entry.Data["check"] != "mongo" {
		t.Fatalf("expected warning for mongo check, got %+v", entry)
	}
}

func TestHealthRejectsPost(t *testing.T) {
	rr := probe(t, NewServer(0, nil), http.MethodPost)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected HTTP 405, got %d", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); allow != "GET, HEAD" {
		t.Fatalf("unexpected Allow header %q", allow)
	}
}

func TestServerAddrAndIdleShutdown(t *testing.T) {
	server := NewServer(9090, nil)
	if server.server.Addr != ":9090" {
		t.Fatalf("expected :9090, got %s", server.server.Addr)
	}

	if err := server.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected shutdown of idle server to succeed, got %v", err)
	}

	var unset *Server
	if err := unset.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil server shutdown to be a no-op, got %v", err)
	}
}
