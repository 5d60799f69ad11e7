package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"
)

// UI event types sent by the page.
const (
	EventSubmit      = "submit"
	EventKeyPress    = "keypress"
	EventKeyDown     = "keydown"
	EventClick       = "click"
	EventOpenDetails = "open_details"
	EventThumbnail   = "thumbnail"
	EventRefresh     = "refresh"
)

// UIEvent is one browser interaction, sent as JSON over /ws or as a form
// POST to /chat.
type UIEvent struct {
	Type    string `json:"type" schema:"type"`
	Message string `json:"message,omitempty" schema:"message"`
	Key     string `json:"key,omitempty" schema:"key"`
	Shift   bool   `json:"shift,omitempty" schema:"shift"`
	Target  string `json:"target,omitempty" schema:"target"`
	Record  string `json:"record,omitempty" schema:"record"`
	Index   int    `json:"index,omitempty" schema:"index"`
}

var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// indexHandler renders the chat page for the caller's session.
func indexHandler(store *sessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s := store.forRequest(w, r)
		page, err := renderFragment("index", s.View())
		if err != nil {
			log.Println("index render error:", err)
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}
}

// chatHandler applies one form-encoded event. JSON callers get the View
// back; plain form posts are redirected to the page.
func chatHandler(store *sessionStore, proxies proxyList) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "parse form: "+err.Error(), http.StatusBadRequest)
			return
		}
		var ev UIEvent
		if err := formDecoder.Decode(&ev, r.PostForm); err != nil {
			http.Error(w, "invalid event: "+err.Error(), http.StatusBadRequest)
			return
		}
		if ev.Type == "" {
			ev.Type = EventSubmit
		}
		s := store.forRequest(w, r)
		view := s.Dispatch(withClientIP(r.Context(), clientIP(r, proxies)), ev)
		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(view)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// wsConn serializes writes to one websocket.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsHandler streams a fresh View after every change to the session. Events
// that start a search run in their own goroutine so the socket keeps
// accepting events (Escape, clicks) while the search is in flight.
func wsHandler(store *sessionStore, proxies proxyList) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, cookie := store.resolve(r)
		origin := clientIP(r, proxies)
		header := http.Header{}
		if cookie != nil {
			header.Add("Set-Cookie", cookie.String())
		}
		raw, err := wsUpgrader.Upgrade(w, r, header)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}
		conn := &wsConn{conn: raw}
		defer raw.Close()
		log.Printf("websocket connected: session %s", s.ID)

		ctx, cancel := context.WithCancel(withClientIP(context.Background(), origin))
		defer cancel()

		changes, stop := s.Watch()
		defer stop()

		if err := conn.writeJSON(s.View()); err != nil {
			log.Printf("websocket write error: %v", err)
			return
		}
		go func() {
			for range changes {
				if err := conn.writeJSON(s.View()); err != nil {
					log.Printf("websocket write error: %v", err)
					cancel()
					return
				}
			}
		}()

		var searches sync.WaitGroup
		defer searches.Wait()
		for {
			var ev UIEvent
			if err := raw.ReadJSON(&ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket read error: %v", err)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			if startsSearch(ev) {
				searches.Add(1)
				go func() {
					defer searches.Done()
					s.apply(ctx, ev)
				}()
				continue
			}
			s.apply(ctx, ev)
		}
	}
}

func startsSearch(ev UIEvent) bool {
	return ev.Type == EventSubmit || (ev.Type == EventKeyPress && ev.Key == "Enter" && !ev.Shift)
}
