package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestAskSingleString(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response": "Chandrayaan-3 landed near the lunar south pole.", "status": "success"}`))
	})

	lines, err := c.Ask(context.Background(), "What is Chandrayaan-3?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "Chandrayaan-3") {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestAskStringList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": ["first line", "second line"]}`))
	})

	lines, err := c.Ask(context.Background(), "query")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(lines) != 2 || lines[0] != "first line" || lines[1] != "second line" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestAskSendsQueryPayload(t *testing.T) {
	var gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.Write([]byte(`{"response": "ok"}`))
	})

	if _, err := c.Ask(context.Background(), "hello"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if gotBody != `{"query":"hello"}` {
		t.Errorf("request body = %s", gotBody)
	}
}

func TestAskNonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "chatbot not initialized", "status": "error"}`))
	})

	_, err := c.Ask(context.Background(), "query")
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error type = %T, want *gateway.Error", err)
	}
	if !strings.Contains(gerr.Detail, "500") || !strings.Contains(gerr.Detail, "chatbot not initialized") {
		t.Errorf("detail = %q", gerr.Detail)
	}
}

func TestAskHTMLErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html><head><title>502 Bad Gateway</title></head><body>boom</body></html>`))
	})

	_, err := c.Ask(context.Background(), "query")
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error type = %T, want *gateway.Error", err)
	}
	if !strings.Contains(gerr.Detail, "502 Bad Gateway") {
		t.Errorf("detail = %q, want HTML title extracted", gerr.Detail)
	}
}

func TestAskMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	})

	_, err := c.Ask(context.Background(), "query")
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error type = %T, want *gateway.Error", err)
	}
}

func TestAskMissingResponseField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success"}`))
	})

	_, err := c.Ask(context.Background(), "query")
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error type = %T, want *gateway.Error", err)
	}
	if !strings.Contains(gerr.Detail, "missing response field") {
		t.Errorf("detail = %q", gerr.Detail)
	}
}

func TestAskWrongResponseShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": {"nested": true}}`))
	})

	_, err := c.Ask(context.Background(), "query")
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error type = %T, want *gateway.Error", err)
	}
}

func TestAskTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on
	c := New(srv.URL)

	_, err := c.Ask(context.Background(), "query")
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error type = %T, want *gateway.Error", err)
	}
	if gerr.Unwrap() == nil {
		t.Error("transport failure should wrap the underlying error")
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("path = %s, want /api/health", r.URL.Path)
		}
		w.Write([]byte(`{"status": "ok", "service": "MOSDAC Knowledge Graph Chatbot"}`))
	})

	payload, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("payload = %v", payload)
	}
}

func TestErrorDetailPlainText(t *testing.T) {
	got := errorDetail("text/plain", []byte("  something broke  "))
	if got != "something broke" {
		t.Errorf("errorDetail = %q", got)
	}
}
