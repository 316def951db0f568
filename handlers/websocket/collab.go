// Package websocket pushes workspace state to collaborators over socket.io.
// Clients join a workspace and receive a "workspace-state" event after every
// change applied through the session manager. Rooms are scoped to the owner
// named by the client's bearer token, so a socket only ever hears about its
// own owner's workspaces.
package websocket

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"layout-server/middleware"
	"layout-server/workspace"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const StateEvent = "workspace-state"

type ackFunc func(err error, payload map[string]any)

type Hub struct {
	srv    *socketio.Server
	secret []byte

	mu    sync.RWMutex
	rooms map[string]int
}

// NewHub creates the socket.io server and registers the room handlers.
// Sockets authenticate with a token signed by secret, sent in the handshake
// auth payload as {"token": "..."} or as the second join-room argument. An
// empty secret puts every socket under middleware.AnonymousOwner, as the HTTP
// API does. allowedOrigins extends the localhost origins accepted by default.
func NewHub(secret []byte, allowedOrigins ...string) *Hub {
	h := &Hub{secret: secret, rooms: make(map[string]int)}

	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	origins := []any{regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)}
	for _, origin := range allowedOrigins {
		origins = append(origins, origin)
	}
	opts.SetCors(&types.Cors{
		Origin:      origins,
		Credentials: true,
	})
	h.srv = socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	h.srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		h.handleConnection(socket)
	})

	return h
}

// Server exposes the socket.io server for mounting on the router.
func (h *Hub) Server() *socketio.Server {
	return h.srv
}

// roomKey names the socket.io room of one owner's workspace.
func roomKey(ownerID, workspaceID string) string {
	return ownerID + "/" + workspaceID
}

// Publish emits state to every socket in the owner's workspace room.
func (h *Hub) Publish(ownerID, workspaceID string, state workspace.State) {
	if h.srv == nil {
		return
	}
	room := socketio.Room(roomKey(ownerID, workspaceID))
	if err := h.srv.To(room).Emit(StateEvent, state); err != nil {
		logrus.WithFields(logrus.Fields{
			"owner_id":     ownerID,
			"workspace_id": workspaceID,
			"error":        err,
		}).Warn("Failed to publish workspace state")
	}
}

// ActiveRooms returns the connected socket count per workspace of one owner.
func (h *Hub) ActiveRooms(ownerID string) map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	prefix := ownerID + "/"
	rooms := make(map[string]int)
	for key, count := range h.rooms {
		id, ok := strings.CutPrefix(key, prefix)
		if ok && id != "" && !strings.Contains(id, "/") {
			rooms[id] = count
		}
	}
	return rooms
}

// authorize resolves the owner of a socket from its token. The token comes
// from the handshake auth payload, or from args after the workspace id.
func (h *Hub) authorize(auth any, args []any) (string, error) {
	if len(h.secret) == 0 {
		return middleware.AnonymousOwner, nil
	}

	token := tokenFromAuth(auth)
	if token == "" && len(args) > 1 {
		token, _ = args[1].(string)
	}
	if token == "" {
		return "", fmt.Errorf("token is required")
	}

	claims, err := middleware.ParseJWT(h.secret, token)
	if err != nil {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}

// joinTarget validates a join or leave request and returns the room to use.
func (h *Hub) joinTarget(auth any, args []any) (room, workspaceID string, err error) {
	workspaceID, err = roomArg(args)
	if err != nil {
		return "", "", err
	}
	ownerID, err := h.authorize(auth, args)
	if err != nil {
		return "", "", err
	}
	return roomKey(ownerID, workspaceID), workspaceID, nil
}

func tokenFromAuth(auth any) string {
	switch v := auth.(type) {
	case map[string]any:
		token, _ := v["token"].(string)
		return strings.TrimPrefix(token, "Bearer ")
	case string:
		return strings.TrimPrefix(v, "Bearer ")
	}
	return ""
}

func (h *Hub) setRoomCount(roomID string, count int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if count <= 0 {
		delete(h.rooms, roomID)
		return
	}
	h.rooms[roomID] = count
}

func (h *Hub) handleConnection(socket *socketio.Socket) {
	me := socket.Id()
	log := logrus.WithField("socket_id", me)
	log.Debug("Socket connected")

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("join-room", func(datas ...any) {
		ack, args := splitAck(datas)
		roomID, workspaceID, err := h.joinTarget(handshakeAuth(socket), args)
		if err != nil {
			log.WithField("error", err).Warn("Rejected join-room")
			respondWithAck(socket, ack, "join-room-ack", errorPayload(err), err)
			return
		}

		room := socketio.Room(roomID)
		socket.Join(room)
		log.WithField("workspace_id", workspaceID).Info("Socket joined workspace")

		h.srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, fetchErr error) {
			if fetchErr != nil {
				respondWithAck(socket, ack, "join-room-ack", errorPayload(fetchErr), fetchErr)
				return
			}
			h.setRoomCount(roomID, len(users))
			h.emitUsers(room, users, "")

			respondWithAck(socket, ack, "join-room-ack", map[string]any{
				"status":     "ok",
				"user_count": len(users),
			}, nil)
		})
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("leave-room", func(datas ...any) {
		ack, args := splitAck(datas)
		roomID, workspaceID, err := h.joinTarget(handshakeAuth(socket), args)
		if err != nil {
			respondWithAck(socket, ack, "leave-room-ack", errorPayload(err), err)
			return
		}

		room := socketio.Room(roomID)
		socket.Leave(room)
		log.WithField("workspace_id", workspaceID).Info("Socket left workspace")
		h.recount(room, me)

		respondWithAck(socket, ack, "leave-room-ack", map[string]any{"status": "ok"}, nil)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("disconnecting", func(...any) {
		for _, room := range socket.Rooms().Keys() {
			if string(room) == string(me) {
				continue
			}
			h.recount(room, me)
		}
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("disconnect", func(...any) {
		socket.RemoveAllListeners("")
		log.Debug("Socket disconnected")
	})
}

// recount refreshes the count of room excluding the socket that is leaving.
func (h *Hub) recount(room socketio.Room, leaving socketio.SocketId) {
	h.srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, err error) {
		if err != nil {
			logrus.WithFields(logrus.Fields{"workspace_id": string(room), "error": err}).Warn("Failed to count room sockets")
			return
		}
		remaining := make([]*socketio.RemoteSocket, 0, len(users))
		for _, user := range users {
			if user.Id() != leaving {
				remaining = append(remaining, user)
			}
		}
		h.setRoomCount(string(room), len(remaining))
		if len(remaining) > 0 {
			h.emitUsers(room, remaining, leaving)
		}
	})
}

func (h *Hub) emitUsers(room socketio.Room, users []*socketio.RemoteSocket, skip socketio.SocketId) {
	ids := make([]socketio.SocketId, 0, len(users))
	for _, user := range users {
		if user.Id() != skip {
			ids = append(ids, user.Id())
		}
	}
	_ = h.srv.In(room).Emit("room-user-change", ids)
}

func handshakeAuth(socket *socketio.Socket) any {
	if hs := socket.Handshake(); hs != nil {
		return hs.Auth
	}
	return nil
}

func roomArg(args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("workspace id is required")
	}
	workspaceID, ok := args[0].(string)
	if !ok || workspaceID == "" || strings.Contains(workspaceID, "/") {
		return "", fmt.Errorf("invalid workspace id")
	}
	return workspaceID, nil
}

func errorPayload(err error) map[string]any {
	return map[string]any{
		"status": "error",
		"error":  err.Error(),
	}
}

// splitAck separates a trailing acknowledgement callback from the event args.
func splitAck(datas []any) (ackFunc, []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack := toAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// toAck adapts any function value to an ackFunc. Callbacks with one parameter
// get the error when there is one and the payload otherwise. Callbacks with
// more get (err, payload) in the first two slots.
func toAck(candidate any) ackFunc {
	if candidate == nil {
		return nil
	}
	fn := reflect.ValueOf(candidate)
	if fn.Kind() != reflect.Func {
		return nil
	}

	typ := fn.Type()
	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			var v any
			switch {
			case typ.NumIn() == 1 && err != nil:
				v = err
			case typ.NumIn() == 1:
				v = payload
			case i == 0:
				v = err
			case i == 1:
				v = payload
			}
			args[i] = ackArg(v, typ.In(i))
		}
		fn.Call(args)
	}
}

func ackArg(value any, target reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(target)
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(target):
		return rv
	case rv.Type().ConvertibleTo(target):
		return rv.Convert(target)
	case target.Kind() == reflect.Interface && target.NumMethod() == 0:
		return rv
	case target.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(target)
	case target.Kind() == reflect.Slice && target.Elem().Kind() == reflect.Interface:
		// socket.io style callbacks take their arguments as []any.
		return reflect.ValueOf([]any{value}).Convert(target)
	}
	return reflect.Zero(target)
}

func respondWithAck(socket *socketio.Socket, ack ackFunc, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
