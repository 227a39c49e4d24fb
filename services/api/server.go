// Package api is the local HTTP control surface of the kiosk controller.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"brewcode-go/bus"
	"brewcode-go/errcode"
	"brewcode-go/services/brew"
	"brewcode-go/services/hal"
	"brewcode-go/types"
	"brewcode-go/x/payload"

	"github.com/gorilla/mux"
	"github.com/rs/xid"
)

const (
	busTimeout      = 2 * time.Second
	shutdownTimeout = 2 * time.Second
	maxBody         = 64 << 10
)

func topicConfig() bus.Topic { return bus.T("config", "api") }

// Server answers HTTP requests from cached bus state and forwards commands
// to the brew service as bus requests.
type Server struct {
	conn *bus.Connection
	log  *log.Logger

	mu     sync.RWMutex
	apiKey string
	state  *types.BrewState
	level  *types.LevelValue

	router *mux.Router
}

func New(conn *bus.Connection, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{conn: conn, log: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.health).Methods(http.MethodGet)

	sec := r.PathPrefix("/api").Subrouter()
	sec.Use(s.auth)
	sec.HandleFunc("/state", s.getState).Methods(http.MethodGet)
	sec.HandleFunc("/level", s.getLevel).Methods(http.MethodGet)
	sec.HandleFunc("/orders", s.postOrder).Methods(http.MethodPost)
	sec.HandleFunc("/trigger", s.postTrigger).Methods(http.MethodPost)
	sec.HandleFunc("/abort", s.postAbort).Methods(http.MethodPost)
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// SetAPIKey sets the key required on /api routes. Empty disables the check.
func (s *Server) SetAPIKey(k string) {
	s.mu.Lock()
	s.apiKey = k
	s.mu.Unlock()
}

// Run follows bus state and serves HTTP on the configured address until ctx
// is cancelled. The listener is restarted when the address changes.
func (s *Server) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig())
	stateSub := s.conn.Subscribe(brew.TopicState())
	levelSub := s.conn.Subscribe(hal.CapValue("env", string(types.KindLevel), types.DevLevel))
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(stateSub)
	defer s.conn.Unsubscribe(levelSub)

	var (
		srv    *http.Server
		listen string
	)
	stop := func() {
		if srv == nil {
			return
		}
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
		srv = nil
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-cfgSub.Channel():
			cfg, err := payload.Decode[types.APIConfig](m.Payload)
			if err != nil {
				s.log.Println("error: config/api:", err)
				continue
			}
			s.SetAPIKey(cfg.APIKey)
			if cfg.Listen == listen && srv != nil {
				continue
			}
			stop()
			listen = cfg.Listen
			if listen == "" {
				s.log.Println("info: no listen address, http disabled")
				continue
			}
			if srv, err = s.serve(listen); err != nil {
				s.log.Println("error: listen", listen, err)
			}
		case m := <-stateSub.Channel():
			if st, ok := m.Payload.(types.BrewState); ok {
				s.mu.Lock()
				s.state = &st
				s.mu.Unlock()
			}
		case m := <-levelSub.Channel():
			if lv, ok := m.Payload.(types.LevelValue); ok {
				s.mu.Lock()
				s.level = &lv
				s.mu.Unlock()
			}
		}
	}
}

func (s *Server) serve(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Println("error: serve:", err)
		}
	}()
	s.log.Println("info: listening on", ln.Addr())
	return srv, nil
}

// ---- middleware ----

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		key := s.apiKey
		s.mu.RUnlock()
		if key != "" && presentedKey(r) != key {
			writeError(w, http.StatusUnauthorized, errcode.Unauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// presentedKey reads X-API-Key or an Authorization bearer token.
func presentedKey(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// ---- handlers ----

type healthResponse struct {
	OK    bool   `json:"ok"`
	State string `json:"state,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := healthResponse{OK: true}
	if s.state != nil {
		resp.State = s.state.State
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, errcode.NotRunning)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) getLevel(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	lv := s.level
	s.mu.RUnlock()
	if lv == nil {
		writeError(w, http.StatusNotFound, errcode.UnknownCapability)
		return
	}
	writeJSON(w, http.StatusOK, lv)
}

type orderResponse struct {
	OK      bool   `json:"ok"`
	OrderID string `json:"orderId"`
}

func (s *Server) postOrder(w http.ResponseWriter, r *http.Request) {
	var o types.OrderReceived
	if !readJSON(w, r, &o) {
		return
	}
	if o.OrderID == "" {
		o.OrderID = "local-" + xid.New().String()
	}
	if err := s.request(r.Context(), brew.TopicOrder(), o); err != nil {
		writeError(w, statusFor(err), errcode.Of(err))
		return
	}
	writeJSON(w, http.StatusAccepted, orderResponse{OK: true, OrderID: o.OrderID})
}

func (s *Server) postTrigger(w http.ResponseWriter, r *http.Request) {
	var t types.Trigger
	if !readJSON(w, r, &t) {
		return
	}
	if t.ID == "" {
		t.ID = "cmd-" + xid.New().String()
	}
	if err := s.request(r.Context(), brew.TopicTrigger(), t); err != nil {
		writeError(w, statusFor(err), errcode.Of(err))
		return
	}
	writeJSON(w, http.StatusOK, types.OKReply{OK: true})
}

func (s *Server) postAbort(w http.ResponseWriter, r *http.Request) {
	var a types.Abort
	if r.ContentLength != 0 && !readJSON(w, r, &a) {
		return
	}
	if a.Reason == "" {
		a.Reason = "api"
	}
	if err := s.request(r.Context(), brew.TopicAbort(), a); err != nil {
		writeError(w, statusFor(err), errcode.Of(err))
		return
	}
	writeJSON(w, http.StatusOK, types.OKReply{OK: true})
}

// request forwards v to the brew service and maps its reply to an error.
func (s *Server) request(ctx context.Context, topic bus.Topic, v any) error {
	ctx, cancel := context.WithTimeout(ctx, busTimeout)
	defer cancel()
	reply, err := s.conn.RequestWait(ctx, s.conn.NewMessage(topic, v, false))
	if err != nil {
		return errcode.Wrap(errcode.Timeout, "brew", err)
	}
	switch p := reply.Payload.(type) {
	case types.OKReply:
		return nil
	case types.ErrorReply:
		return errcode.Code(p.Error)
	}
	return errcode.InvalidPayload
}

func statusFor(err error) int {
	switch errcode.Of(err) {
	case errcode.Busy, errcode.NotRunning:
		return http.StatusConflict
	case errcode.Timeout:
		return http.StatusGatewayTimeout
	case errcode.Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

// ---- JSON helpers ----

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, errcode.InvalidPayload)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errcode.Code) {
	writeJSON(w, status, types.ErrorReply{OK: false, Error: string(code)})
}
