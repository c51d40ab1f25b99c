package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Aricg/TacticalBlocks-sub001/internal/protocol"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
)

// Matches resolves a match id to a running match. An empty id selects the
// default match.
type Matches interface {
	Match(id string) *match.Match
}

type Server struct {
	matches Matches
	log     *log.Logger

	// AllowRemote lifts the loopback-only restriction.
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

// BootstrapResponse carries the static map data an observer needs before
// the first STATE frame.
type BootstrapResponse struct {
	ProtocolVersion string          `json:"protocol_version"`
	MatchID         string          `json:"match_id"`
	Tick            uint64          `json:"tick"`
	TickRateHz      int             `json:"tick_rate_hz"`
	Map             string          `json:"map"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	Terrain         []string        `json:"terrain,omitempty"`
	Hills           []string        `json:"hills,omitempty"`
	Cities          []BootstrapCity `json:"cities"`
}

type BootstrapCity struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Anchor [2]int `json:"anchor"`
}

func NewServer(m Matches, logger *log.Logger) *Server {
	return &Server{
		matches: m,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		m := s.matches.Match(r.URL.Query().Get("match_id"))
		if m == nil {
			http.Error(rw, protocol.ErrMatchNotFound, http.StatusNotFound)
			return
		}

		b := m.Bundle()
		resp := BootstrapResponse{
			ProtocolVersion: protocol.Version,
			MatchID:         m.ID(),
			Tick:            m.CurrentTick(),
			TickRateHz:      m.Tuning().Load().TickRateHz,
			Map:             b.Name,
			Width:           b.Width,
			Height:          b.Height,
			Terrain:         b.Terrain,
			Hills:           b.Hills,
		}
		for _, c := range b.Cities {
			resp.Cities = append(resp.Cities, BootstrapCity{ID: c.ID, Kind: c.Kind, Anchor: c.Anchor})
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}
		matchID := sub.MatchID
		if matchID == "" {
			matchID = r.URL.Query().Get("match_id")
		}
		m := s.matches.Match(matchID)
		if m == nil {
			closeWith(conn, websocket.ClosePolicyViolation, protocol.ErrMatchNotFound)
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 8)
		joinReq := match.ObserverJoinRequest{
			SessionID:  sid,
			Out:        out,
			Format:     sub.Format,
			FieldEvery: sub.FieldEvery,
		}
		select {
		case m.ObserverJoin() <- joinReq:
		default:
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		if s.log != nil {
			s.log.Printf("observer %s joined match=%s format=%s", sid, m.ID(), sub.Format)
		}
		defer func() {
			select {
			case m.ObserverLeave() <- sid:
			default:
				// Match loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(frameType(b), b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := parseSubscribe(msg)
			if !ok {
				continue
			}
			req := match.ObserverSubscribeRequest{
				SessionID:  sid,
				Format:     sub.Format,
				FieldEvery: sub.FieldEvery,
			}
			select {
			case m.ObserverSubscribe() <- req:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := protocol.Validate(protocol.SchemaSubscribe, msg); err != nil {
		return sub, false
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
		return sub, false
	}
	if sub.Format == "" {
		sub.Format = protocol.FormatJSON
	}
	return sub, true
}

// JSON frames always open with '{'; anything else is a msgpack frame.
func frameType(b []byte) int {
	if len(b) > 0 && b[0] == '{' {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
