package echoapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/responses"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveSendBuffer = 64
)

type (
	// Hub mirrors code changes to the viewers of an instance over websockets.
	Hub struct {
		upgrader websocket.Upgrader
		log      core.Logger

		mu   sync.RWMutex
		subs map[int]map[*subscriber]struct{} // by instance ID
	}

	subscriber struct {
		id         string
		instanceID int
		userID     int
		send       chan responses.CodeChange
		closeOnce  sync.Once
	}
)

var _ responses.Broadcaster = (*Hub)(nil)

func NewHub(log core.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // the JWT is the gate
		},
		log:  log,
		subs: make(map[int]map[*subscriber]struct{}),
	}
}

// Broadcast queues ch for every viewer of its instance but its author.
// A viewer too slow to keep up is disconnected.
func (h *Hub) Broadcast(ch responses.CodeChange) {
	h.mu.RLock()
	var slow []*subscriber
	for sub := range h.subs[ch.InstanceID] {
		if sub.userID == ch.UserID {
			continue
		}
		select {
		case sub.send <- ch:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.log.Warn("echoapi.Hub: dropping slow viewer", map[string]interface{}{"subscriber": sub.id, "instance": sub.instanceID})
		h.unregister(sub)
	}
}

// Viewers returns how many connections watch an instance.
func (h *Hub) Viewers(instanceID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[instanceID])
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sub.instanceID] == nil {
		h.subs[sub.instanceID] = make(map[*subscriber]struct{})
	}
	h.subs[sub.instanceID][sub] = struct{}{}
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	if subs, ok := h.subs[sub.instanceID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.instanceID)
		}
	}
	h.mu.Unlock()
	sub.closeOnce.Do(func() { close(sub.send) })
}

// Serve upgrades the request and streams the instance's changes to it until
// the viewer goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, instanceID, userID int) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrading live connection")
	}
	sub := &subscriber{
		id:         uuid.NewString(),
		instanceID: instanceID,
		userID:     userID,
		send:       make(chan responses.CodeChange, liveSendBuffer),
	}
	h.register(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readPump(conn)
	}()
	h.writePump(conn, sub, done)

	h.unregister(sub)
	_ = conn.Close()
	<-done
	return nil
}

// readPump only serves control frames; viewers never send changes.
func (h *Hub) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ch, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "slow viewer"))
				return
			}
			if err := conn.WriteJSON(ch); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
