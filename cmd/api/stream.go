package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"repolens/internal/event"
	"repolens/internal/pipeline"
	"repolens/internal/util/jsonutil"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

func requestFromQuery(r *http.Request) (pipeline.Request, bool) {
	repo := strings.TrimSpace(r.URL.Query().Get("repo"))
	if repo == "" {
		return pipeline.Request{}, false
	}
	return pipeline.Request{
		RepoID:  repo,
		Ref:     strings.TrimSpace(r.URL.Query().Get("ref")),
		Refresh: r.URL.Query().Get("refresh") == "true",
	}, true
}

// startRun launches the analysis and returns the event stream feeding it.
// The channel closes once the run has emitted its terminal event.
func (s *server) startRun(ctx context.Context, req pipeline.Request) *event.ChannelEmitter {
	em := event.NewChannelEmitter(ctx, 64)
	go func() {
		defer em.Close()
		_, _ = s.coordinator.Analyze(event.WithEmitter(ctx, em), req)
	}()
	return em
}

// handleAnalyzeSSE streams one run as server-sent events, one event per
// data frame.
func (s *server) handleAnalyzeSSE(w http.ResponseWriter, r *http.Request) {
	req, ok := requestFromQuery(r)
	if !ok {
		http.Error(w, "repo is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	em := s.startRun(ctx, req)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-em.Events():
			if !ok {
				fmt.Fprintf(w, "event: close\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			raw, err := jsonutil.MarshalNoEscape(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

// handleAnalyzeWS streams one run over a websocket. The handler goroutine
// is the only writer; a side goroutine drains client frames so pongs are
// processed and a closing client cancels the run.
func (s *server) handleAnalyzeWS(w http.ResponseWriter, r *http.Request) {
	req, ok := requestFromQuery(r)
	if !ok {
		http.Error(w, "repo is required", http.StatusBadRequest)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	em := s.startRun(ctx, req)

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-em.Events():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			raw, err := jsonutil.MarshalNoEscape(ev)
			if err != nil {
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	}
}
