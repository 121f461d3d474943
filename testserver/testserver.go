// Package testserver is an in-process stub backend (C10/C13): it speaks
// just enough of the HTTP control plane and WebSocket message plane to
// exercise a Client against the scenarios of spec.md §8, without a real
// system bridge backend. It is built on gorilla/mux + gorilla/websocket,
// the same pairing thatcooperguy-nvremote's gateway uses for its own
// HTTP+WS surface.
package testserver

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Script describes how the server should react to one inbound WebSocket
// request event: the response frame to echo back, and any follow-up
// DATA_UPDATE pushes to emit afterward.
type Script struct {
	// Response is sent back (with the request's id added when Response
	// carries no "id" of its own) when a request whose event matches the
	// one this Script was registered under via SetScript arrives.
	Response map[string]any
	// Pushes are sent, in order, after Response.
	Pushes []map[string]any
}

// Server is the stub backend. Zero value is not usable; use New.
type Server struct {
	httpServer *httptest.Server
	token      string

	mu      sync.Mutex
	scripts map[string]Script // keyed by request "event"

	systemResponse  map[string]any
	systemStatus    int
	informationResp map[string]any
	informationStatus int

	upgrader websocket.Upgrader
}

// New builds and starts a Server listening on 127.0.0.1:<random port>.
// The caller must call Close when done.
func New(token string) *Server {
	s := &Server{
		token:    token,
		scripts:  make(map[string]Script),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/websocket", s.handleWebsocket)
	router.HandleFunc("/api/data/system", s.handleSystem)
	router.HandleFunc("/information", s.handleInformation)
	router.HandleFunc("/test/json", s.handleTestJSON)
	router.HandleFunc("/test/text", s.handleTestText)
	router.HandleFunc("/test/badrequest", s.handleTestBadRequest)
	router.HandleFunc("/test/unauthorised", s.handleTestUnauthorised)

	s.httpServer = httptest.NewServer(router)
	return s
}

// Close shuts down the server.
func (s *Server) Close() { s.httpServer.Close() }

// Addr returns the host:port the server is listening on.
func (s *Server) Addr() string {
	return s.httpServer.Listener.Addr().String()
}

// HostPort splits Addr into host and port for Configuration.
func (s *Server) HostPort() (string, int) {
	addr := s.httpServer.Listener.Addr()
	tcpAddr := addr.(*net.TCPAddr)
	return tcpAddr.IP.String(), tcpAddr.Port
}

// SetScript registers how the server should respond to requests whose
// "event" field equals event.
func (s *Server) SetScript(event string, script Script) {
	s.mu.Lock()
	s.scripts[event] = script
	s.mu.Unlock()
}

// SetSystemResponse configures the payload and status GET /api/data/system
// returns, for version-probe scenarios.
func (s *Server) SetSystemResponse(status int, body map[string]any) {
	s.mu.Lock()
	s.systemStatus, s.systemResponse = status, body
	s.mu.Unlock()
}

// SetInformationResponse configures the payload and status GET
// /information returns, for legacy-version scenarios.
func (s *Server) SetInformationResponse(status int, body map[string]any) {
	s.mu.Lock()
	s.informationStatus, s.informationResp = status, body
	s.mu.Unlock()
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		token, _ := req["token"].(string)
		id, _ := req["id"].(string)
		if s.token != "" && token != s.token {
			_ = conn.WriteJSON(map[string]any{
				"id":      id,
				"type":    "ERROR",
				"subtype": "BAD_TOKEN",
				"message": "invalid token",
			})
			continue
		}

		event, _ := req["event"].(string)

		s.mu.Lock()
		script, ok := s.scripts[event]
		s.mu.Unlock()
		if !ok {
			continue
		}

		if script.Response != nil {
			resp := cloneMap(script.Response)
			if _, has := resp["id"]; !has {
				resp["id"] = id
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
		for _, push := range script.Pushes {
			if err := conn.WriteJSON(push); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, body := s.systemStatus, s.systemResponse
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusNotFound
	}
	writeJSON(w, status, body)
}

func (s *Server) handleInformation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, body := s.informationStatus, s.informationResp
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusNotFound
	}
	writeJSON(w, status, body)
}

func (s *Server) handleTestJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"test": "test"})
}

func (s *Server) handleTestText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("test"))
}

func (s *Server) handleTestBadRequest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"test": "test"})
}

func (s *Server) handleTestUnauthorised(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{"test": "test"})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		body = map[string]any{}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
