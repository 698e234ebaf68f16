// Package sse fans draft lifecycle events out to the browser tabs editing a page.
package sse

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/auth"
	"github.com/debemdeboas/wikidraft/internal/config"
	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/publish"
)

type Client struct {
	Msg chan Message
	Key model.PageKey
}

// Message is one event frame. Event names the SSE event type, Data its payload.
type Message struct {
	Event string
	Data  string
}

type Clients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewClients() *Clients {
	return &Clients{
		clients: make(map[*Client]bool),
	}
}

func (s *Clients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *Clients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *Clients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast delivers msg to every client watching key. Slow clients miss the
// message instead of blocking the sender.
func (s *Clients) Broadcast(key model.PageKey, msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.Key == key {
			select {
			case client.Msg <- msg:
			default:
			}
		}
	}
}

// Handler streams the events of the page named by the "page" query parameter
// to an authenticated user.
func Handler(clients *Clients, provider auth.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := zerolog.Ctx(r.Context())

		if _, err := provider.UserFromRequest(r); err != nil {
			status := domain.StatusCode(err)
			http.Error(w, http.StatusText(status), status)
			return
		}

		key := model.PageKey(r.URL.Query().Get(config.FormPage))
		if err := publish.ValidateKey(key); err != nil {
			http.Error(w, "Invalid page parameter", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set(config.HCType, "text/event-stream")
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Del("X-Content-Type-Options")

		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", key)
		flusher.Flush()

		client := &Client{
			Msg: make(chan Message, 4),
			Key: key,
		}
		clients.Add(client)
		l.Debug().Str("key", string(key)).Msg("SSE client connected")

		defer func() {
			clients.Delete(client)
			l.Debug().Str("key", string(key)).Msg("SSE client disconnected")
		}()

		done := r.Context().Done()
		for {
			select {
			case msg := <-client.Msg:
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
				flusher.Flush()
			case <-done:
				return
			}
		}
	}
}
