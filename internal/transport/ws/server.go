package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Aricg/TacticalBlocks-sub001/internal/protocol"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
)

// Matches resolves a match id to a running match. An empty id selects the
// default match.
type Matches interface {
	Match(id string) *match.Match
}

type Config struct {
	// CommandsPerSecond and Burst bound each connection's command rate.
	CommandsPerSecond float64
	Burst             int
}

func DefaultConfig() Config {
	return Config{CommandsPerSecond: 20, Burst: 40}
}

type Server struct {
	matches Matches
	cfg     Config
	log     *log.Logger

	upgrader websocket.Upgrader
}

// session is one commanding connection bound to a match and a team.
type session struct {
	id    string
	team  model.Team
	match *match.Match

	out     chan []byte
	replies chan match.CommandResult
	limiter *rate.Limiter
}

func NewServer(m Matches, cfg Config, logger *log.Logger) *Server {
	if cfg.CommandsPerSecond <= 0 {
		cfg.CommandsPerSecond = DefaultConfig().CommandsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	return &Server{
		matches: m,
		cfg:     cfg,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn, r.URL.Query().Get("match_id"))
		if sess == nil {
			return
		}
		if s.log != nil {
			s.log.Printf("session %s joined match=%s team=%s", sess.id, sess.match.ID(), sess.team)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Tick-boundary results become ACK or ERROR frames.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case res := <-sess.replies:
					if res.Err != nil {
						sess.send(protocol.NewError(res.Seq, match.ErrorCode(res.Err), res.Err.Error()))
						continue
					}
					sess.send(protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, Seq: res.Seq, Tick: res.Tick})
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleMessage(sess, msg)
		}
		cancel()
	}
}

func (s *Server) handshake(conn *websocket.Conn, queryMatch string) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil
	}
	if err := protocol.Validate(protocol.SchemaHello, msg); err != nil {
		_ = writeJSON(conn, protocol.NewError(0, protocol.ErrProtoBadRequest, err.Error()))
		closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return nil
	}
	team, ok := model.ParseTeam(hello.Team)
	if !ok || team == model.Neutral {
		closeWith(conn, websocket.ClosePolicyViolation, "bad team")
		return nil
	}
	matchID := strings.TrimSpace(hello.MatchID)
	if matchID == "" {
		matchID = queryMatch
	}
	m := s.matches.Match(matchID)
	if m == nil {
		_ = writeJSON(conn, protocol.NewError(0, protocol.ErrMatchNotFound, "unknown match"))
		closeWith(conn, websocket.ClosePolicyViolation, protocol.ErrMatchNotFound)
		return nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 32
	}
	if maxQ > 256 {
		maxQ = 256
	}
	sess := &session{
		id:      uuid.NewString(),
		team:    team,
		match:   m,
		out:     make(chan []byte, maxQ),
		replies: make(chan match.CommandResult, 256),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.CommandsPerSecond), s.cfg.Burst),
	}

	tu := m.Tuning().Load()
	b := m.Bundle()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		MatchID:         m.ID(),
		Team:            team.String(),
		Tick:            m.CurrentTick(),
		TickRateHz:      tu.TickRateHz,
		Width:           b.Width,
		Height:          b.Height,
		MaxWaypoints:    tu.Movement.MaxWaypoints,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return sess
}

// handleMessage validates one client frame and submits it. Rejections that
// can be decided now are answered immediately; the rest arrive through the
// session's reply channel at the tick boundary.
func (s *Server) handleMessage(sess *session, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		sess.send(protocol.NewError(0, protocol.ErrProtoBadRequest, "bad json"))
		return
	}
	if !protocol.IsCommand(base.Type) {
		sess.send(protocol.NewError(0, protocol.ErrProtoBadRequest, "unknown message type"))
		return
	}
	if base.ProtocolVersion != protocol.Version {
		sess.send(protocol.NewError(0, protocol.ErrProtoBadRequest, "bad protocol_version"))
		return
	}
	var cm protocol.CommandMsg
	// Seq is best effort here so schema errors can still be correlated.
	_ = json.Unmarshal(msg, &cm)
	if err := protocol.Validate(protocol.SchemaCommand, msg); err != nil {
		sess.send(protocol.NewError(cm.Seq, protocol.ErrBadRequest, err.Error()))
		return
	}
	if !sess.limiter.Allow() {
		sess.send(protocol.NewError(cm.Seq, protocol.ErrRateLimit, "too many commands"))
		return
	}
	if err := sess.match.Submit(toCommand(cm, sess)); err != nil {
		sess.send(protocol.NewError(cm.Seq, match.ErrorCode(err), err.Error()))
	}
}

func toCommand(cm protocol.CommandMsg, sess *session) match.Command {
	cmd := match.Command{
		Kind:           cm.Type,
		Team:           sess.team,
		UnitID:         cm.UnitID,
		TargetRotation: cm.TargetRotation,
		Seq:            cm.Seq,
		Reply:          sess.replies,
	}
	for _, w := range cm.Waypoints {
		cmd.Waypoints = append(cmd.Waypoints, model.Vec2{X: w[0], Y: w[1]})
	}
	if cm.Mode != nil {
		cmd.Mode = &model.CommandMode{SpeedMultiplier: cm.Mode.SpeedMultiplier, RotateToFace: cm.Mode.RotateToFace}
	}
	return cmd
}

// send queues a frame, dropping it if the client is not keeping up.
func (sess *session) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case sess.out <- b:
	default:
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
