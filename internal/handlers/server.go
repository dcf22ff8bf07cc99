// internal/handlers/server.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/broadcast"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/game"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/journal"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/models"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/registry"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/room"
)

// Server owns every coordinator component and is the only place their
// operations are composed. All state lives in the stores it holds; nothing
// here is package-global.
type Server struct {
	Logger   *logrus.Logger
	Registry *registry.Registry
	Rooms    *room.Store
	Games    *game.Store
	Gateway  *broadcast.Gateway
	Journal  *journal.Journal
	Config   game.Config
}

// NewServer wires an empty coordinator. journal may be nil.
func NewServer(logger *logrus.Logger, cfg game.Config, j *journal.Journal) *Server {
	return &Server{
		Logger:   logger,
		Registry: registry.New(),
		Rooms:    room.NewStore(),
		Games:    game.NewStore(),
		Gateway:  broadcast.NewGateway(),
		Journal:  j,
		Config:   cfg,
	}
}

// HandleMessage decodes one inbound frame and dispatches it. Unknown types
// and malformed payloads earn the sender an error frame and change nothing.
func (s *Server) HandleMessage(userID uuid.UUID, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.Gateway.ToUser(userID, errFrame("invalid JSON"))
		return
	}

	switch env.Type {
	case MsgProfile:
		var p ProfilePayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleProfile(userID, p)
	case MsgCreateRoom:
		var p CreateRoomPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleCreateRoom(userID, p)
	case MsgJoinRoom:
		var p JoinRoomPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleJoinRoom(userID, p)
	case MsgLeaveRoom:
		var p RoomRefPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleLeaveRoom(userID, p.RoomID)
	case MsgCloseRoom:
		var p RoomRefPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleCloseRoom(userID, p.RoomID)
	case MsgStartGame:
		var p RoomRefPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleStartGame(userID, p.RoomID)
	case MsgStopGame:
		var p RoomRefPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleStopGame(userID, p.RoomID)
	case MsgChat:
		var p ChatPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleChat(userID, p)
	case MsgDraw:
		var p DrawPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleDraw(userID, p)
	case MsgClearCanvas:
		var p RoomRefPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleClearCanvas(userID, p.RoomID)
	case MsgLetter:
		var p LetterPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleLetter(userID, p)
	case MsgTyping:
		var p TypingPayload
		if !s.decode(userID, env.Data, &p) {
			return
		}
		s.handleTyping(userID, p)
	default:
		s.Logger.Warnf("user %s sent unknown message type %q", userID, env.Type)
		s.Gateway.ToUser(userID, errFrame("unknown message type: "+env.Type))
	}
}

func (s *Server) decode(userID uuid.UUID, data json.RawMessage, dst interface{}) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		s.Gateway.ToUser(userID, errFrame("invalid payload"))
		return false
	}
	return true
}

// handleProfile registers or updates the sender's display identity and
// re-broadcasts the online user list.
func (s *Server) handleProfile(userID uuid.UUID, p ProfilePayload) {
	name := strings.TrimSpace(p.Name)
	if name == "" || len(name) > 32 {
		s.Gateway.ToUser(userID, errFrame("invalid profile name"))
		return
	}
	s.Registry.Put(&models.User{
		ID:     userID,
		Name:   name,
		Age:    p.Age,
		Gender: p.Gender,
	})
	s.broadcastUsers()
}

func (s *Server) handleCreateRoom(userID uuid.UUID, p CreateRoomPayload) {
	if !s.requireProfile(userID) {
		return
	}
	info, err := s.Rooms.Create(userID, p.Name, p.Password, p.Variant)
	if err != nil {
		s.Gateway.ToUser(userID, errFrame(err.Error()))
		return
	}
	s.Logger.Infof("user %s created room %s (%q, %s)", userID, info.ID, info.Name, info.Variant)
	s.Gateway.ToUser(userID, roomStateFrame{Type: "room_state", Room: info})
	s.broadcastRoomList()
}

func (s *Server) handleJoinRoom(userID uuid.UUID, p JoinRoomPayload) {
	if !s.requireProfile(userID) {
		return
	}
	info, err := s.Rooms.Join(userID, p.RoomID, p.Password)
	if err != nil {
		s.Gateway.ToUser(userID, errFrame(err.Error()))
		return
	}
	s.Logger.Infof("user %s joined room %s", userID, info.ID)
	s.Gateway.ToUsers(info.Members, roomEventFrame{Type: "user_joined", RoomID: info.ID, UserID: userID})
	s.Gateway.ToUsers(info.Members, roomStateFrame{Type: "room_state", Room: info})
	s.broadcastRoomList()
}

func (s *Server) handleLeaveRoom(userID uuid.UUID, roomID string) {
	s.removeFromRoom(userID, roomID, "left")
}

// removeFromRoom runs the full departure flow: directory mutation first, then
// engine notification, then presence broadcasts. reason distinguishes an
// explicit leave from a dropped connection in the frames members see.
func (s *Server) removeFromRoom(userID uuid.UUID, roomID, reason string) {
	res, err := s.Rooms.Leave(userID, roomID)
	if err != nil {
		if !errors.Is(err, room.ErrRoomNotFound) {
			s.Gateway.ToUser(userID, errFrame(err.Error()))
		}
		return
	}
	if !res.WasMember {
		return
	}
	s.Logger.Infof("user %s %s room %s (deleted=%v hostChanged=%v)", userID, reason, roomID, res.Deleted, res.HostChanged)

	// The engine re-reads membership from the store, so it must be told only
	// after the directory change landed. If the room fell apart the engine
	// sees an empty membership and ends the game itself.
	if eng, ok := s.Games.Get(roomID); ok {
		eng.HandleLeave(userID)
	}

	remaining := res.Room.Members
	s.Gateway.ToUsers(remaining, roomEventFrame{Type: "user_left", RoomID: roomID, UserID: userID, Reason: reason})
	if res.Deleted {
		s.Gateway.ToUsers(remaining, roomEventFrame{Type: "room_closed", RoomID: roomID, Reason: "not enough players"})
	} else {
		if res.HostChanged {
			s.Gateway.ToUsers(remaining, roomEventFrame{Type: "host_changed", RoomID: roomID, HostID: res.NewHostID})
		}
		s.Gateway.ToUsers(remaining, roomStateFrame{Type: "room_state", Room: res.Room})
	}
	s.broadcastRoomList()
}

// handleCloseRoom tears the room down on host request, evicting everyone.
func (s *Server) handleCloseRoom(userID uuid.UUID, roomID string) {
	info, err := s.Rooms.Terminate(roomID, userID)
	if err != nil {
		s.Gateway.ToUser(userID, errFrame(err.Error()))
		return
	}
	if eng, ok := s.Games.Remove(roomID); ok {
		eng.Stop()
	}
	s.Logger.Infof("host %s closed room %s", userID, roomID)
	s.Gateway.ToUsers(info.Members, roomEventFrame{Type: "room_closed", RoomID: roomID, Reason: "closed by host"})
	s.broadcastRoomList()
}

// handleStartGame spins up the variant engine for the room and starts its
// first round.
func (s *Server) handleStartGame(userID uuid.UUID, roomID string) {
	info, ok := s.Rooms.Get(roomID)
	if !ok {
		s.Gateway.ToUser(userID, errFrame(room.ErrRoomNotFound.Error()))
		return
	}
	if info.HostID != userID {
		s.Gateway.ToUser(userID, errFrame(room.ErrNotHost.Error()))
		return
	}
	if info.InProgress {
		s.Gateway.ToUser(userID, errFrame(game.ErrAlreadyStarted.Error()))
		return
	}

	eng := s.buildEngine(roomID, info.Variant)
	if !s.Games.Add(roomID, eng) {
		s.Gateway.ToUser(userID, errFrame(game.ErrAlreadyStarted.Error()))
		return
	}
	s.Rooms.SetInProgress(roomID, true)
	s.broadcastRoomList()

	if err := eng.Start(); err != nil {
		s.Games.Remove(roomID)
		s.Rooms.SetInProgress(roomID, false)
		s.broadcastRoomList()
		s.Gateway.ToUser(userID, errFrame(err.Error()))
		return
	}
	s.Logger.Infof("game started in room %s (%s)", roomID, info.Variant)
}

// buildEngine constructs the variant engine with its callbacks wired to the
// stores and gateway. The engine never holds references into live room state;
// membership is re-read through the store on every rotation.
func (s *Server) buildEngine(roomID string, variant room.Variant) game.Engine {
	liveMembers := func() []uuid.UUID {
		return s.Rooms.Members(roomID)
	}
	broadcastEvent := func(e game.Event) {
		members := s.Rooms.Members(e.RoomID)
		if len(members) == 0 {
			// The room may already be torn down when the engine emits its
			// final event; fall back to the scored participants so they still
			// see the outcome.
			for idStr := range e.Scores {
				if id, err := uuid.Parse(idStr); err == nil {
					members = append(members, id)
				}
			}
		}
		s.Gateway.ToUsers(members, e)
	}
	onGameEnd := func(reason string, winner uuid.UUID, scores map[uuid.UUID]int, rounds int) {
		s.finishGame(roomID, string(variant), reason, winner, scores, rounds)
	}

	switch variant {
	case room.VariantWord:
		g := game.NewWordGame(roomID, s.Config)
		g.LiveMembers = liveMembers
		g.BroadcastFn = broadcastEvent
		g.OnGameEnd = onGameEnd
		return g
	default:
		g := game.NewDrawingGame(roomID, s.Config)
		g.LiveMembers = liveMembers
		g.BroadcastFn = broadcastEvent
		g.BroadcastToFn = func(id uuid.UUID, e game.Event) {
			s.Gateway.ToUser(id, e)
		}
		g.RelayFn = func(sender uuid.UUID, e game.Event) {
			s.Gateway.ToUsersExcept(s.Rooms.Members(e.RoomID), sender, e)
		}
		g.OnGameEnd = onGameEnd
		return g
	}
}

// finishGame is the single post-game cleanup path, fired by every engine exit
// (win, stop, collapse). It detaches the engine, reopens the room for joins
// and journals the outcome. Runs under the engine lock, so it must never call
// engine methods.
func (s *Server) finishGame(roomID, variant, reason string, winner uuid.UUID, scores map[uuid.UUID]int, rounds int) {
	s.Games.Remove(roomID)
	s.Rooms.SetInProgress(roomID, false)
	s.broadcastRoomList()
	s.Logger.Infof("game in room %s ended: %s (winner=%s)", roomID, reason, winner)

	if s.Journal == nil {
		return
	}
	rec := journal.GameResultRecord{
		RoomID:   roomID,
		Variant:  variant,
		Reason:   reason,
		WinnerID: winner,
		Scores:   make(map[string]int, len(scores)),
		Rounds:   rounds,
		EndedAt:  time.Now().UnixMilli(),
	}
	for id, sc := range scores {
		rec.Scores[id.String()] = sc
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Journal.Publish(ctx, rec); err != nil {
			s.Logger.Warnf("failed to journal game result for room %s: %v", roomID, err)
		}
	}()
}

func (s *Server) handleStopGame(userID uuid.UUID, roomID string) {
	info, ok := s.Rooms.Get(roomID)
	if !ok {
		s.Gateway.ToUser(userID, errFrame(room.ErrRoomNotFound.Error()))
		return
	}
	if info.HostID != userID {
		s.Gateway.ToUser(userID, errFrame(room.ErrNotHost.Error()))
		return
	}
	eng, ok := s.Games.Get(roomID)
	if !ok {
		s.Gateway.ToUser(userID, errFrame(game.ErrRoundInactive.Error()))
		return
	}
	eng.Stop()
}

// handleChat relays a chat line to the room. In a drawing room with a round
// in flight the text is first offered to the engine as a guess; a correct
// guess is announced by the engine and the raw text is suppressed so the
// answer does not land in chat.
func (s *Server) handleChat(userID uuid.UUID, p ChatPayload) {
	u := s.Registry.Get(userID)
	if u == nil {
		s.Gateway.ToUser(userID, errFrame("profile required"))
		return
	}
	text := strings.TrimSpace(p.Text)
	if text == "" || len(text) > 512 {
		return
	}
	info, ok := s.Rooms.Get(p.RoomID)
	if !ok || !memberOf(info.Members, userID) {
		s.Gateway.ToUser(userID, errFrame(room.ErrRoomNotFound.Error()))
		return
	}

	if eng, running := s.Games.Get(p.RoomID); running {
		if dg, isDrawing := eng.(*game.DrawingGame); isDrawing && dg.SubmitGuess(userID, text) {
			return
		}
	}
	s.Gateway.ToUsers(info.Members, chatFrame{Type: "chat", RoomID: p.RoomID, User: *u, Text: text})
}

func (s *Server) handleDraw(userID uuid.UUID, p DrawPayload) {
	eng, ok := s.Games.Get(p.RoomID)
	if !ok {
		s.Gateway.ToUser(userID, errFrame(game.ErrRoundInactive.Error()))
		return
	}
	dg, ok := eng.(*game.DrawingGame)
	if !ok {
		s.Gateway.ToUser(userID, errFrame("not a drawing room"))
		return
	}
	if err := dg.SubmitStroke(userID, p.Stroke); err != nil {
		s.Gateway.ToUser(userID, errFrame(err.Error()))
	}
}

func (s *Server) handleClearCanvas(userID uuid.UUID, roomID string) {
	eng, ok := s.Games.Get(roomID)
	if !ok {
		s.Gateway.ToUser(userID, errFrame(game.ErrRoundInactive.Error()))
		return
	}
	dg, ok := eng.(*game.DrawingGame)
	if !ok {
		s.Gateway.ToUser(userID, errFrame("not a drawing room"))
		return
	}
	if err := dg.ClearCanvas(userID); err != nil {
		s.Gateway.ToUser(userID, errFrame(err.Error()))
	}
}

func (s *Server) handleLetter(userID uuid.UUID, p LetterPayload) {
	eng, ok := s.Games.Get(p.RoomID)
	if !ok {
		s.Gateway.ToUser(userID, errFrame(game.ErrRoundInactive.Error()))
		return
	}
	wg, ok := eng.(*game.WordGame)
	if !ok {
		s.Gateway.ToUser(userID, errFrame("not a word room"))
		return
	}
	if err := wg.GuessLetter(userID, p.Letter); err != nil {
		s.Gateway.ToUser(userID, errFrame(err.Error()))
	}
}

// handleTyping relays the indicator to the other room members only.
func (s *Server) handleTyping(userID uuid.UUID, p TypingPayload) {
	info, ok := s.Rooms.Get(p.RoomID)
	if !ok || !memberOf(info.Members, userID) {
		return
	}
	s.Gateway.ToUsersExcept(info.Members, userID, typingFrame{
		Type: "typing", RoomID: p.RoomID, UserID: userID, Typing: p.Typing,
	})
}

// HandleConnect sends the welcome state to a fresh (or reconnected)
// connection: identity, presence, room directory, and a full resync of any
// room the user is still a member of, round snapshot and canvas included.
func (s *Server) HandleConnect(userID uuid.UUID) {
	u := s.Registry.Get(userID)
	self := models.User{ID: userID}
	if u != nil {
		self = *u
	}
	s.Gateway.ToUser(userID, welcomeFrame{
		Type:  "welcome",
		User:  self,
		Users: s.Registry.All(),
		Rooms: s.Rooms.List(),
	})

	for _, roomID := range s.Rooms.RoomsWithMember(userID) {
		info, ok := s.Rooms.Get(roomID)
		if !ok {
			continue
		}
		s.Gateway.ToUser(userID, roomStateFrame{Type: "room_state", Room: info})
		eng, running := s.Games.Get(roomID)
		if !running {
			continue
		}
		s.Gateway.ToUser(userID, roundStateFrame{Type: "round_state", RoomID: roomID, Round: eng.Snapshot()})
		if dg, isDrawing := eng.(*game.DrawingGame); isDrawing {
			s.Gateway.ToUser(userID, canvasFrame{Type: "canvas_state", RoomID: roomID, Strokes: dg.StrokeLog()})
			// A drawer who reconnected mid-round needs their word back; the
			// public snapshot only carries the masked hint.
			if word, ok := dg.WordFor(userID); ok {
				s.Gateway.ToUser(userID, game.Event{
					Type:   game.EventWordReveal,
					RoomID: roomID,
					Word:   word,
				})
			}
		}
	}
}

// HandleDisconnect runs when a connection drops for good (not displaced by a
// reconnect): the user leaves every room they were in, then vanishes from the
// registry.
func (s *Server) HandleDisconnect(userID uuid.UUID) {
	for _, roomID := range s.Rooms.RoomsWithMember(userID) {
		s.removeFromRoom(userID, roomID, "disconnected")
	}
	s.Registry.Remove(userID)
	s.broadcastUsers()
}

func (s *Server) requireProfile(userID uuid.UUID) bool {
	if s.Registry.Online(userID) {
		return true
	}
	s.Gateway.ToUser(userID, errFrame("profile required"))
	return false
}

func (s *Server) broadcastUsers() {
	s.Gateway.ToAll(usersFrame{Type: "users", Users: s.Registry.All()})
}

func (s *Server) broadcastRoomList() {
	s.Gateway.ToAll(roomListFrame{Type: "room_list", Rooms: s.Rooms.List()})
}

func memberOf(members []uuid.UUID, userID uuid.UUID) bool {
	for _, id := range members {
		if id == userID {
			return true
		}
	}
	return false
}
