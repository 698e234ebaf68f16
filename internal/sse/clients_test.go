package sse

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/debemdeboas/wikidraft/internal/auth"
	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/publish"
)

func TestBroadcastFiltersByKey(t *testing.T) {
	clients := NewClients()

	front := &Client{Msg: make(chan Message, 1), Key: "FrontPage"}
	other := &Client{Msg: make(chan Message, 1), Key: "Other"}
	clients.Add(front)
	clients.Add(other)

	clients.Broadcast("FrontPage", Message{Event: "draft-saved", Data: "FrontPage"})

	select {
	case msg := <-front.Msg:
		if msg.Event != "draft-saved" {
			t.Errorf("Expected draft-saved, got %q", msg.Event)
		}
	default:
		t.Error("Expected FrontPage client to receive the message")
	}

	select {
	case msg := <-other.Msg:
		t.Errorf("Other client received %+v", msg)
	default:
	}
}

func TestBroadcastDoesNotBlock(t *testing.T) {
	clients := NewClients()
	slow := &Client{Msg: make(chan Message), Key: "k"}
	clients.Add(slow)

	done := make(chan struct{})
	go func() {
		clients.Broadcast("k", Message{Event: "x"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a client that is not reading")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	clients := NewClients()
	c := &Client{Msg: make(chan Message), Key: "k"}
	clients.Add(c)

	clients.Delete(c)
	clients.Delete(c)

	if clients.Len() != 0 {
		t.Errorf("Expected no clients, got %d", clients.Len())
	}
	if _, open := <-c.Msg; open {
		t.Error("Expected channel to be closed")
	}
}

type denyProvider struct{}

func (denyProvider) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

func (denyProvider) UserFromRequest(*http.Request) (model.UserID, error) {
	return "", fmt.Errorf("no session: %w", domain.ErrUnauthorized)
}

func TestHandlerRejectsRequests(t *testing.T) {
	testCases := []struct {
		name     string
		provider auth.AuthProvider
		target   string
		want     int
	}{
		{"Unauthenticated", denyProvider{}, "/sse?page=FrontPage", http.StatusUnauthorized},
		{"Missing page", auth.AnonymousProvider{}, "/sse", http.StatusBadRequest},
		{"Newline in page", auth.AnonymousProvider{}, "/sse?page=" + url.QueryEscape("A\ndata: injected"), http.StatusBadRequest},
		{"Control character in page", auth.AnonymousProvider{}, "/sse?page=" + url.QueryEscape("A\x00B"), http.StatusBadRequest},
		{"Page too long", auth.AnonymousProvider{}, "/sse?page=" + strings.Repeat("k", publish.MaxKeyBytes+1), http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clients := NewClients()
			rec := httptest.NewRecorder()
			Handler(clients, tc.provider)(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))

			if rec.Code != tc.want {
				t.Errorf("Expected %d, got %d", tc.want, rec.Code)
			}
			if strings.Contains(rec.Body.String(), "event:") {
				t.Errorf("Expected no event stream, got %q", rec.Body.String())
			}
			if clients.Len() != 0 {
				t.Errorf("Expected no subscriber, got %d", clients.Len())
			}
		})
	}
}

func TestHandlerStreamsEvents(t *testing.T) {
	clients := NewClients()
	srv := httptest.NewServer(Handler(clients, auth.AnonymousProvider{}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?page=FrontPage", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected event stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readFrame := func() string {
		var frame strings.Builder
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if line == "\n" {
				return frame.String()
			}
			frame.WriteString(line)
		}
	}

	if got := readFrame(); got != "event: connected\ndata: FrontPage\n" {
		t.Errorf("Unexpected greeting %q", got)
	}

	// The client registers after the greeting is flushed.
	deadline := time.Now().Add(time.Second)
	for clients.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	clients.Broadcast(model.PageKey("FrontPage"), Message{Event: "draft-published", Data: "FrontPage"})
	if got := readFrame(); got != "event: draft-published\ndata: FrontPage\n" {
		t.Errorf("Unexpected frame %q", got)
	}
}
