package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Aricg/TacticalBlocks-sub001/internal/protocol"
)

// bot commands one team: idle units march on the nearest city their team
// does not own; cut-off units fall back to the nearest friendly city.
func main() {
	var (
		base    = flag.String("url", "ws://localhost:8080", "server base url")
		team    = flag.String("team", "blue", "team to command (blue|red)")
		matchID = flag.String("match", "", "match id (optional; default match)")
		every   = flag.Uint64("every", 20, "re-plan every N ticks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	root := strings.TrimRight(*base, "/")

	cmdConn, _, err := websocket.DefaultDialer.Dial(root+"/v1/ws", nil)
	if err != nil {
		logger.Fatalf("dial commands: %v", err)
	}
	defer cmdConn.Close()
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		MatchID:         *matchID,
		Team:            *team,
		Name:            "bot-" + *team,
		MaxQueue:        32,
	}
	if err := cmdConn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := cmdConn.ReadJSON(&welcome); err != nil || welcome.Type != protocol.TypeWelcome {
		logger.Fatalf("expected WELCOME: %+v %v", welcome, err)
	}
	logger.Printf("WELCOME session=%s match=%s team=%s tick_rate=%d", welcome.SessionID, welcome.MatchID, welcome.Team, welcome.TickRateHz)

	obsURL := root + "/v1/observer/ws"
	if welcome.MatchID != "" {
		obsURL += "?match_id=" + url.QueryEscape(welcome.MatchID)
	}
	obsConn, _, err := websocket.DefaultDialer.Dial(obsURL, nil)
	if err != nil {
		logger.Fatalf("dial observer: %v", err)
	}
	defer obsConn.Close()
	sub := protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version, MatchID: welcome.MatchID, Format: protocol.FormatJSON}
	if err := obsConn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	// Replies are only logged; a rejected order is re-planned next round.
	go func() {
		for {
			_, msg, err := cmdConn.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.DecodeBase(msg)
			if err == nil && env.Type == protocol.TypeError {
				logger.Printf("ERROR %s", msg)
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	frames := make(chan protocol.StateMsg, 1)
	go func() {
		defer close(frames)
		for {
			_, msg, err := obsConn.ReadMessage()
			if err != nil {
				return
			}
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil || st.Type != protocol.TypeState {
				continue
			}
			select {
			case frames <- st:
			default:
			}
		}
	}()

	var seq uint64
	var lastPlan uint64
	planned := false
	for {
		select {
		case <-stop:
			return
		case st, ok := <-frames:
			if !ok {
				return
			}
			if st.Outcome.Winner != "" {
				logger.Printf("match decided at tick=%d winner=%s", st.Tick, st.Outcome.Winner)
				return
			}
			if planned && st.Tick-lastPlan < *every {
				continue
			}
			planned, lastPlan = true, st.Tick
			for _, cmd := range planMoves(st, welcome.Team) {
				seq++
				cmd.Seq = seq
				if err := cmdConn.WriteJSON(cmd); err != nil {
					logger.Printf("send %s: %v", cmd.Type, err)
					return
				}
			}
		}
	}
}

// planMoves orders every idle unit of team toward its objective.
func planMoves(st protocol.StateMsg, team string) []protocol.CommandMsg {
	var out []protocol.CommandMsg
	for _, u := range st.Units {
		if u.Team != team || u.Moving {
			continue
		}
		friendly := u.Unsupplied
		c, ok := nearestCity(st.Cities, u.Pos, func(owner string) bool { return (owner == team) == friendly })
		if !ok {
			continue
		}
		target := [2]float64{float64(c.Anchor[0]) + 0.5, float64(c.Anchor[1]) + 0.5}
		if math.Hypot(target[0]-u.Pos[0], target[1]-u.Pos[1]) < 0.5 {
			continue
		}
		out = append(out, protocol.CommandMsg{
			Type:            protocol.TypeMove,
			ProtocolVersion: protocol.Version,
			UnitID:          u.ID,
			Waypoints:       [][2]float64{target},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID < out[j].UnitID })
	return out
}

func nearestCity(cities []protocol.CityState, pos [2]float64, want func(owner string) bool) (protocol.CityState, bool) {
	var best protocol.CityState
	bestD := math.Inf(1)
	found := false
	for _, c := range cities {
		if !want(c.Owner) {
			continue
		}
		d := math.Hypot(float64(c.Anchor[0])+0.5-pos[0], float64(c.Anchor[1])+0.5-pos[1])
		if d < bestD || (d == bestD && c.ID < best.ID) {
			best, bestD, found = c, d, true
		}
	}
	return best, found
}
