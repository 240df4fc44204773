package extract

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/convene/internal/faults"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5*time.Second, zerolog.Nop())
}

func TestClientParsesValidResponse(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Correlation-ID") == "" {
			t.Errorf("missing correlation id header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title":"DevOps Summit","speakers":[{"name":"Ada Lovelace","confidence":0.9}]}`))
	})

	payload, err := client.Extract(context.Background(), "conference announcement text")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if payload.Title == nil || *payload.Title != "DevOps Summit" {
		t.Fatalf("wrong title: %+v", payload.Title)
	}
	if len(payload.Speakers) != 1 || payload.Speakers[0].Name != "Ada Lovelace" {
		t.Fatalf("wrong speakers: %+v", payload.Speakers)
	}
}

func TestClientClassifiesStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   faults.Class
	}{
		{"bad request", http.StatusBadRequest, faults.ClassInput},
		{"unauthorized", http.StatusUnauthorized, faults.ClassInput},
		{"forbidden", http.StatusForbidden, faults.ClassInput},
		{"unprocessable", http.StatusUnprocessableEntity, faults.ClassInput},
		{"throttled", http.StatusTooManyRequests, faults.ClassTransient},
		{"server error", http.StatusInternalServerError, faults.ClassTransient},
		{"bad gateway", http.StatusBadGateway, faults.ClassTransient},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := client.Extract(context.Background(), "some text")
			if got := faults.ClassOf(err); got != tt.want {
				t.Fatalf("status %d classified as %q, want %q (err: %v)", tt.status, got, tt.want, err)
			}
		})
	}
}

func TestClientClassifiesMalformedBodyAsDecode(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"speakers":[{"confidence":0.9}]}`))
	})

	_, err := client.Extract(context.Background(), "some text")
	if got := faults.ClassOf(err); got != faults.ClassDecode {
		t.Fatalf("schema violation classified as %q, want %q (err: %v)", got, faults.ClassDecode, err)
	}
}

func TestClientClassifiesTimeoutAsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, 20*time.Millisecond, zerolog.Nop())
	_, err := client.Extract(context.Background(), "some text")
	if got := faults.ClassOf(err); got != faults.ClassTransient {
		t.Fatalf("timeout classified as %q, want %q (err: %v)", got, faults.ClassTransient, err)
	}
}

func TestClientClassifiesCancellationAsTransient(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := NewClient(server.URL, 5*time.Second, zerolog.Nop())
	_, err := client.Extract(ctx, "some text")
	if got := faults.ClassOf(err); got != faults.ClassTransient {
		t.Fatalf("shutdown cancellation classified as %q, want %q (err: %v)", got, faults.ClassTransient, err)
	}
}

func TestClientRejectsEmptyText(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("server must not be reached for empty input")
	})

	_, err := client.Extract(context.Background(), "   ")
	if got := faults.ClassOf(err); got != faults.ClassInput {
		t.Fatalf("empty text classified as %q, want %q", got, faults.ClassInput)
	}
}

func TestClientSendsContentField(t *testing.T) {
	t.Parallel()

	var body bytes.Buffer
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body.ReadFrom(r.Body)
		w.Write([]byte(`{}`))
	})

	if _, err := client.Extract(context.Background(), "hello world"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := body.String(); got != `{"content":"hello world"}` {
		t.Fatalf("unexpected request body: %s", got)
	}
}
