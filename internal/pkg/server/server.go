// Package server exposes the live state of the monitored printers over HTTP
// for debugging.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anicoll/souzu/internal/pkg/hub"
	"github.com/anicoll/souzu/internal/pkg/model"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMsgSize      = 1 << 12
	shutdownTimeout = 5 * time.Second
)

type printers interface {
	Devices() []model.Device
	Latest(deviceID string) (*model.StatusReport, bool)
	Subscribe(deviceID string) (*hub.Subscription[*model.StatusReport], bool)
}

type server struct {
	printers printers
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func New(p printers) *server {
	return &server{
		printers: p,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: zap.L(),
	}
}

func (s *server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/devices", s.listDevices).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}/status", s.deviceStatus).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}/stream", s.streamStatus).Methods(http.MethodGet)
	r.Use(loggingMiddleware(s.logger))
	return r
}

// ListenAndServe serves on addr until ctx is done.
func (s *server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("debug server listening", zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func (s *server) listDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.printers.Devices())
}

func (s *server) deviceStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	report, ok := s.printers.Latest(id)
	if !ok {
		http.Error(w, "unknown device "+id, http.StatusNotFound)
		return
	}
	if report == nil {
		http.Error(w, "no status received yet from "+id, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, model.ReportWrapper{Print: report})
}

// streamStatus writes every new snapshot of the device to a websocket until
// the client goes away.
func (s *server) streamStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sub, ok := s.printers.Subscribe(id)
	if !ok {
		http.Error(w, "unknown device "+id, http.StatusNotFound)
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case report, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(model.ReportWrapper{Print: report}); err != nil {
				s.logger.Info("websocket write failed", zap.String("device_id", id), zap.Error(err))
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
