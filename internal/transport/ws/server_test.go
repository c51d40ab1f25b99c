package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Aricg/TacticalBlocks-sub001/internal/protocol"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/mapbundle"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

type oneMatch struct{ m *match.Match }

func (o oneMatch) Match(id string) *match.Match {
	if id == "" || id == o.m.ID() {
		return o.m
	}
	return nil
}

func startMatch(t *testing.T) *match.Match {
	t.Helper()
	b, err := mapbundle.Load("../../../configs/maps/skirmish.yaml")
	if err != nil {
		t.Fatalf("load map: %v", err)
	}
	m, err := match.New(match.Config{ID: "m1", Bundle: b, Tuning: tuning.NewStore(tuning.Defaults())})
	if err != nil {
		t.Fatalf("new match: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Run(ctx) }()
	t.Cleanup(m.Stop)
	t.Cleanup(cancel)
	return m
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readType reads frames until one of the given type arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != typ {
			continue
		}
		if err := json.Unmarshal(msg, v); err != nil {
			t.Fatalf("decode %s: %v", typ, err)
		}
		return
	}
}

func hello(t *testing.T, conn *websocket.Conn, team string) protocol.WelcomeMsg {
	t.Helper()
	send(t, conn, `{"type":"HELLO","protocol_version":"1.0","team":"`+team+`"}`)
	var w protocol.WelcomeMsg
	readType(t, conn, protocol.TypeWelcome, &w)
	return w
}

func TestHandshakeAndCommandReplies(t *testing.T) {
	m := startMatch(t)
	srv := httptest.NewServer(NewServer(oneMatch{m}, DefaultConfig(), nil).Handler())
	defer srv.Close()
	conn := dial(t, srv)

	w := hello(t, conn, "blue")
	if w.MatchID != "m1" || w.Team != "blue" || w.SessionID == "" || w.Width != 32 || w.MaxWaypoints != 32 {
		t.Fatalf("welcome=%+v", w)
	}

	send(t, conn, `{"type":"MOVE","protocol_version":"1.0","seq":1,"unit_id":"U000001","waypoints":[[8.5,6.5]]}`)
	var ack protocol.AckMsg
	readType(t, conn, protocol.TypeAck, &ack)
	if ack.Seq != 1 {
		t.Fatalf("ack=%+v", ack)
	}

	// U000005 is red.
	send(t, conn, `{"type":"CANCEL","protocol_version":"1.0","seq":2,"unit_id":"U000005"}`)
	var e protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &e)
	if e.Seq != 2 || e.Code != protocol.ErrNoPermission {
		t.Fatalf("error=%+v", e)
	}
}

func TestSchemaRejectsNonNumericWaypoints(t *testing.T) {
	m := startMatch(t)
	srv := httptest.NewServer(NewServer(oneMatch{m}, DefaultConfig(), nil).Handler())
	defer srv.Close()
	conn := dial(t, srv)
	hello(t, conn, "red")

	send(t, conn, `{"type":"MOVE","protocol_version":"1.0","seq":9,"unit_id":"U000005","waypoints":[["a","b"]]}`)
	var e protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &e)
	if e.Code != protocol.ErrBadRequest || e.Seq != 9 {
		t.Fatalf("error=%+v", e)
	}

	send(t, conn, `{"type":"JUMP","protocol_version":"1.0"}`)
	readType(t, conn, protocol.TypeError, &e)
	if e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("error=%+v", e)
	}
}

func TestRateLimitPerConnection(t *testing.T) {
	m := startMatch(t)
	srv := httptest.NewServer(NewServer(oneMatch{m}, Config{CommandsPerSecond: 0.001, Burst: 1}, nil).Handler())
	defer srv.Close()
	conn := dial(t, srv)
	hello(t, conn, "blue")

	send(t, conn, `{"type":"CANCEL","protocol_version":"1.0","seq":1,"unit_id":"U000001"}`)
	send(t, conn, `{"type":"CANCEL","protocol_version":"1.0","seq":2,"unit_id":"U000001"}`)
	var e protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &e)
	if e.Code != protocol.ErrRateLimit || e.Seq != 2 {
		t.Fatalf("error=%+v", e)
	}

	// A second connection has its own budget.
	other := dial(t, srv)
	hello(t, other, "blue")
	send(t, other, `{"type":"MOVE","protocol_version":"1.0","seq":3,"unit_id":"U000002","waypoints":[[9.5,7.5]]}`)
	var ack protocol.AckMsg
	readType(t, other, protocol.TypeAck, &ack)
	if ack.Seq != 3 {
		t.Fatalf("ack=%+v", ack)
	}
}

func TestHelloRejectsUnknownMatch(t *testing.T) {
	m := startMatch(t)
	srv := httptest.NewServer(NewServer(oneMatch{m}, DefaultConfig(), nil).Handler())
	defer srv.Close()
	conn := dial(t, srv)
	send(t, conn, `{"type":"HELLO","protocol_version":"1.0","team":"red","match_id":"nope"}`)
	var e protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &e)
	if e.Code != protocol.ErrMatchNotFound {
		t.Fatalf("error=%+v", e)
	}
}
