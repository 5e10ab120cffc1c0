package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"grandexchange-api/internal/model"
	"grandexchange-api/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	pongTimeout      = 60 * time.Second
	pingInterval     = 25 * time.Second
)

// TokenValidator resolves a session token to its player.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.TokenData, error)
}

// HistorySource is the server side of the history sync protocol.
type HistorySource interface {
	Snapshot(playerID int64) model.HistoryTabSnapshot
	Acknowledge(ctx context.Context, playerID, timestamp int64) (model.HistoryBadge, error)
}

// Server serves the history feed. A client sends HELLO with a session token,
// receives a HISTORY_SNAPSHOT, then deltas and badges as they happen. It may
// send HISTORY_ACK at any time.
type Server struct {
	hub     *Hub
	history HistorySource
	tokens  TokenValidator

	upgrader websocket.Upgrader
}

// NewServer creates a history feed server.
func NewServer(hub *Hub, history HistorySource, tokens TokenValidator) *Server {
	return &Server{
		hub:     hub,
		history: history,
		tokens:  tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // game clients send no Origin
		},
	}
}

// Handler upgrades the request and runs the connection until either side closes it.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub := s.handshake(r.Context(), conn)
		if sub == nil {
			return
		}
		defer s.hub.unsubscribe(sub)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go s.writeLoop(ctx, cancel, conn, sub)

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		for {
			_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.handleMessage(ctx, sub, msg)
		}
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) *subscriber {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	if err := protocol.HelloSchema.Bytes(msg); err != nil {
		reject(conn, protocol.ErrBadRequest, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		reject(conn, protocol.ErrBadRequest, "expected HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrBadRequest, "bad protocol_version")
		return nil
	}

	data, err := s.tokens.ValidateToken(ctx, hello.Token)
	if err != nil {
		reject(conn, protocol.ErrUnauthorized, "invalid or expired token")
		return nil
	}

	playerID := data.PlayerID
	sub, err := s.hub.subscribe(playerID, func() ([]byte, error) {
		return json.Marshal(protocol.NewSnapshot(s.history.Snapshot(playerID)))
	})
	if err != nil {
		log.Printf("[HistoryFeed] Snapshot for player %d failed: %v", playerID, err)
		reject(conn, protocol.ErrInternal, "snapshot unavailable")
		return nil
	}

	log.Printf("[HistoryFeed] Player %d subscribed", playerID)
	return sub
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sub *subscriber) {
	defer cancel()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.gone:
			// dropped by the hub; closing the socket ends the reader
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"), time.Now().Add(time.Second))
			_ = conn.Close()
			return
		case b := <-sub.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				_ = conn.Close()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, sub *subscriber, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.sendError(sub, protocol.ErrBadRequest, "malformed message")
		return
	}

	switch base.Type {
	case protocol.TypeAck:
		if err := protocol.AckSchema.Bytes(msg); err != nil {
			s.sendError(sub, protocol.ErrBadRequest, err.Error())
			return
		}
		var ack protocol.AckMsg
		if err := json.Unmarshal(msg, &ack); err != nil {
			s.sendError(sub, protocol.ErrBadRequest, "malformed HISTORY_ACK")
			return
		}
		// the resulting badge reaches every connection of the player through the hub
		if _, err := s.history.Acknowledge(ctx, sub.playerID, ack.Timestamp); err != nil {
			s.sendError(sub, protocol.ErrBadRequest, err.Error())
		}
	default:
		s.sendError(sub, protocol.ErrBadRequest, "unsupported message type "+base.Type)
	}
}

func (s *Server) sendError(sub *subscriber, code, message string) {
	b, err := json.Marshal(protocol.NewError(code, message))
	if err != nil {
		return
	}
	sub.send(b)
}

func reject(conn *websocket.Conn, code, message string) {
	_ = writeJSON(conn, protocol.NewError(code, message))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
