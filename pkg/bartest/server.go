package bartest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/global-bar/bar-web/pkg/protocol"
)

// Server is an in-process room server speaking the bar protocol over real
// WebSockets. Every player spawns at (SpawnX, SpawnY), each
// pressed key moves StepPx, and chat is broadcast to the whole room.
type Server struct {
	// URL is the ws:// base URL to pass to client.Connect.
	URL string

	// HTTPURL is the http:// form of URL.
	HTTPURL string

	// Ack is sent in reply to join; UserID is filled per player.
	Ack protocol.JoinAck

	// SpawnX and SpawnY are the initial position of each player.
	SpawnX, SpawnY float64

	// StepPx is the distance moved per pressed key per intent.
	StepPx float64

	srv      *httptest.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	nextID   int
	peers    map[*peer]struct{}
	received []*protocol.Envelope
	rooms    []string
}

type peer struct {
	ws     *websocket.Conn
	roomID string
	writeM sync.Mutex

	// Guarded by Server.mu.
	joined bool
	user   protocol.UserData
}

// NewServer starts a server that is shut down when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Ack: protocol.JoinAck{
			TickRate:    20,
			MoveLimitHz: 15,
			World:       protocol.WorldSize{W: 960, H: 540},
		},
		SpawnX: 100,
		SpawnY: 100,
		StepPx: 4,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: slog.Default().With("component", "bartest.server"),
		peers:  make(map[*peer]struct{}),
	}

	r := chi.NewRouter()
	r.Get("/ws/rooms/{roomID}", s.handleRoom)

	s.srv = httptest.NewServer(r)
	s.HTTPURL = s.srv.URL
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http")
	t.Cleanup(s.Close)
	return s
}

// Close disconnects every peer and stops the server.
func (s *Server) Close() {
	s.DropAll()
	s.srv.Close()
}

// DropAll abruptly closes every connection, as a network failure would.
func (s *Server) DropAll() {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.ws.Close()
	}
}

// Connections returns the number of open peers.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Rooms returns the room ids requested, in connection order.
func (s *Server) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rooms...)
}

// Received returns every envelope received from clients.
func (s *Server) Received() []*protocol.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*protocol.Envelope(nil), s.received...)
}

// ReceivedTypes returns the types of every envelope received from clients.
func (s *Server) ReceivedTypes() []protocol.MessageType {
	envs := s.Received()
	out := make([]protocol.MessageType, len(envs))
	for i, env := range envs {
		out[i] = env.Type
	}
	return out
}

// Broadcast sends an envelope of type t to every joined peer in roomID.
func (s *Server) Broadcast(roomID string, t protocol.MessageType, payload any) {
	s.mu.Lock()
	targets := s.roomPeersLocked(roomID, nil)
	s.mu.Unlock()
	for _, p := range targets {
		s.send(p, t, payload)
	}
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}

	p := &peer{ws: ws, roomID: roomID}
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.rooms = append(s.rooms, roomID)
	s.mu.Unlock()

	defer s.leave(p)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			s.send(p, protocol.TypeError, protocol.ServerError{Code: "BAD_MESSAGE", Message: err.Error()})
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, env)
		s.mu.Unlock()

		s.dispatch(p, env)
	}
}

func (s *Server) dispatch(p *peer, env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeJoin:
		var join protocol.Join
		if err := json.Unmarshal(env.Payload, &join); err != nil || join.Nickname == "" {
			s.send(p, protocol.TypeError, protocol.ServerError{Code: "BAD_JOIN", Message: "nickname required"})
			return
		}
		s.join(p, join)

	case protocol.TypeMoveIntent:
		var intent protocol.MoveIntent
		if err := json.Unmarshal(env.Payload, &intent); err != nil {
			return
		}
		s.move(p, intent.Keys)

	case protocol.TypeChatSay:
		var say protocol.ChatSay
		if err := json.Unmarshal(env.Payload, &say); err != nil {
			return
		}
		s.chat(p, say)

	case protocol.TypePing:
		s.send(p, protocol.TypePong, nil)

	default:
		s.send(p, protocol.TypeError, protocol.ServerError{Code: "UNKNOWN_TYPE", Message: string(env.Type)})
	}
}

func (s *Server) join(p *peer, join protocol.Join) {
	s.mu.Lock()
	s.nextID++
	p.joined = true
	p.user = protocol.UserData{
		UserID:   "u" + strconv.Itoa(s.nextID),
		X:        s.SpawnX,
		Y:        s.SpawnY,
		Nickname: join.Nickname,
		Avatar:   join.Avatar,
	}
	others := s.roomPeersLocked(p.roomID, p)
	users := make([]protocol.UserData, 0, len(others))
	for _, o := range others {
		users = append(users, o.user)
	}
	you := p.user
	ack := s.Ack
	s.mu.Unlock()

	ack.UserID = you.UserID
	s.send(p, protocol.TypeJoinAck, ack)
	s.send(p, protocol.TypeSnapshot, protocol.Snapshot{You: you, Users: users})
	for _, o := range others {
		s.send(o, protocol.TypeUserJoined, protocol.UserJoined{User: you})
	}
}

func (s *Server) move(p *peer, keys protocol.Keys) {
	s.mu.Lock()
	if !p.joined {
		s.mu.Unlock()
		return
	}
	if keys.Left {
		p.user.X -= s.StepPx
	}
	if keys.Right {
		p.user.X += s.StepPx
	}
	if keys.Up {
		p.user.Y -= s.StepPx
	}
	if keys.Down {
		p.user.Y += s.StepPx
	}
	moved := protocol.UserMoved{UserID: p.user.UserID, X: p.user.X, Y: p.user.Y}
	targets := s.roomPeersLocked(p.roomID, nil)
	s.mu.Unlock()

	for _, o := range targets {
		s.send(o, protocol.TypeUserMoved, moved)
	}
}

func (s *Server) chat(p *peer, say protocol.ChatSay) {
	s.mu.Lock()
	if !p.joined {
		s.mu.Unlock()
		return
	}
	msg := protocol.ChatMessage{
		MessageID:   uuid.NewString(),
		FromUserID:  p.user.UserID,
		Text:        say.Text,
		At:          protocol.FormatTimestamp(time.Now()),
		BubbleTTLMs: say.BubbleTTLMs,
	}
	targets := s.roomPeersLocked(p.roomID, nil)
	s.mu.Unlock()

	for _, o := range targets {
		s.send(o, protocol.TypeChatMessage, msg)
	}
}

func (s *Server) leave(p *peer) {
	p.ws.Close()

	s.mu.Lock()
	delete(s.peers, p)
	wasJoined := p.joined
	userID := p.user.UserID
	targets := s.roomPeersLocked(p.roomID, p)
	s.mu.Unlock()

	if !wasJoined {
		return
	}
	for _, o := range targets {
		s.send(o, protocol.TypeUserLeft, protocol.UserLeft{UserID: userID})
	}
}

// roomPeersLocked returns joined peers in roomID other than except.
func (s *Server) roomPeersLocked(roomID string, except *peer) []*peer {
	var out []*peer
	for o := range s.peers {
		if o != except && o.joined && o.roomID == roomID {
			out = append(out, o)
		}
	}
	return out
}

func (s *Server) send(p *peer, t protocol.MessageType, payload any) {
	env, err := protocol.Encode(t, payload, protocol.Route{RoomID: p.roomID})
	if err != nil {
		s.logger.Error("encode", "type", t, "error", err)
		return
	}
	raw, err := protocol.Marshal(env)
	if err != nil {
		return
	}
	p.writeM.Lock()
	defer p.writeM.Unlock()
	_ = p.ws.WriteMessage(websocket.TextMessage, raw)
}
