// Command historywatch follows a player's Grand Exchange history feed and
// prints the unseen badge after every update.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"grandexchange-api/internal/historytab"
	"grandexchange-api/internal/protocol"

	"github.com/gorilla/websocket"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/ws/history", "history feed url")
		token = flag.String("token", os.Getenv("GE_TOKEN"), "player session token")
		ack   = flag.Bool("ack", false, "acknowledge entries as soon as they arrive")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[historywatch] ", log.LstdFlags)
	if *token == "" {
		logger.Fatal("a session token is required (-token or GE_TOKEN)")
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Token:           *token,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	state := historytab.New()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !apply(state, msg, logger) {
			continue
		}

		logger.Printf("entries=%d unseen=%d latest=%d",
			len(state.Entries()), state.UnseenCount(), state.LatestEntryTimestamp())

		if *ack && state.HasUnseenEntries() {
			state.MarkEntriesSeen()
			err := conn.WriteJSON(protocol.AckMsg{
				Type:      protocol.TypeAck,
				Timestamp: state.LatestEntryTimestamp(),
			})
			if err != nil {
				logger.Printf("send HISTORY_ACK: %v", err)
				return
			}
		}
	}
}

// apply folds one server message into state and reports whether it changed.
func apply(state *historytab.State, msg []byte, logger *log.Logger) bool {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return false
	}

	switch base.Type {
	case protocol.TypeSnapshot:
		var m protocol.SnapshotMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return false
		}
		state.ApplySnapshot(m.Snapshot)
	case protocol.TypeDelta:
		var m protocol.DeltaMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return false
		}
		for _, e := range m.Delta.NewEntries {
			side := "bought"
			if e.IsSale {
				side = "sold"
			}
			logger.Printf("#%d %s %dx %s for %d", m.Delta.Sequence, side, e.Quantity, e.ItemStringID, e.PricePerItem)
		}
		state.ApplyDelta(m.Delta)
	case protocol.TypeBadge:
		var m protocol.BadgeMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return false
		}
		state.ApplyBadge(m.Badge)
	case protocol.TypeError:
		var m protocol.ErrorMsg
		if err := json.Unmarshal(msg, &m); err == nil {
			logger.Printf("server error %s: %s", m.Code, m.Message)
		}
		return false
	default:
		return false
	}
	return true
}
