package sessions

import (
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	backrooms "github.com/linxule/liminal-backrooms"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventFeed broadcasts scheduler events to websocket subscribers.
type eventFeed struct {
	logger *log.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newEventFeed(logger *log.Logger) *eventFeed {
	return &eventFeed{logger: logger, conns: make(map[*websocket.Conn]bool)}
}

// pump forwards bus events to every subscriber until the bus closes.
func (f *eventFeed) pump(events <-chan backrooms.Event) {
	for ev := range events {
		f.broadcast(ev)
	}
}

func (f *eventFeed) broadcast(ev backrooms.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.conns {
		if err := conn.WriteJSON(ev); err != nil {
			f.logger.Printf("dropping event subscriber: %v", err)
			conn.Close()
			delete(f.conns, conn)
		}
	}
}

func (f *eventFeed) add(conn *websocket.Conn) {
	f.mu.Lock()
	f.conns[conn] = true
	f.mu.Unlock()
}

func (f *eventFeed) remove(conn *websocket.Conn) {
	f.mu.Lock()
	if f.conns[conn] {
		conn.Close()
		delete(f.conns, conn)
	}
	f.mu.Unlock()
}

// handleEvents upgrades the connection and streams events until the
// client disconnects. Subscribers are read-only.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	s.feed.add(conn)

	// Drain client frames so pings are answered; any read error means the
	// client went away.
	go func() {
		defer s.feed.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
