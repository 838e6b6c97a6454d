package webserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/stake-plus/multisig-relay/src/notify"
	"go.uber.org/zap"
)

const (
	feedBuffer    = 16
	feedWriteWait = 10 * time.Second
	feedPingEvery = 30 * time.Second
)

type feedClient struct {
	addr string
	send chan notify.Event
}

// Feed pushes notification events to connected websocket clients. Each
// client only receives events it is involved in. Slow clients drop events.
type Feed struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*feedClient]struct{}
	done     chan struct{}
	once     sync.Once
	lg       *zap.Logger
}

func NewFeed(origins []string, lg *zap.Logger) *Feed {
	f := &Feed{
		clients: make(map[*feedClient]struct{}),
		done:    make(chan struct{}),
		lg:      lg.Named("feed"),
	}
	f.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(origins) == 0 || origin == "" || lo.Contains(origins, origin)
		},
	}
	return f
}

// Publish fans ev out to every interested client.
func (f *Feed) Publish(ev notify.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for cl := range f.clients {
		if !ev.Involves(cl.addr) {
			continue
		}
		select {
		case cl.send <- ev:
		default:
			f.lg.Debug("feed client too slow, event dropped", zap.String("address", cl.addr))
		}
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

func (f *Feed) add(cl *feedClient) {
	f.mu.Lock()
	f.clients[cl] = struct{}{}
	f.mu.Unlock()
}

func (f *Feed) remove(cl *feedClient) {
	f.mu.Lock()
	delete(f.clients, cl)
	f.mu.Unlock()
}

// Serve upgrades the request and streams events until either side closes.
func (f *Feed) Serve(c *gin.Context) {
	ws, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.lg.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	cl := &feedClient{addr: caller(c), send: make(chan notify.Event, feedBuffer)}
	f.add(cl)
	defer f.remove(cl)

	// The reader only watches for the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingEvery)
	defer ping.Stop()
	for {
		select {
		case ev := <-cl.send:
			_ = ws.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-f.done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(feedWriteWait))
			return
		}
	}
}
