package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// Conn is the part of *websocket.Conn a subscriber uses.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// subscriber owns one connection. All writes happen on its writer goroutine.
type subscriber struct {
	id     string
	conn   Conn
	clock  clockwork.Clock
	cfg    Config
	onExit func(s *subscriber, err error)

	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

func newSubscriber(id string, conn Conn, clock clockwork.Clock, cfg Config, onExit func(*subscriber, error)) *subscriber {
	s := &subscriber{
		id:     id,
		conn:   conn,
		clock:  clock,
		cfg:    cfg,
		onExit: onExit,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
	s.configurePongHandler()
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *subscriber) run() {
	ticker := s.clock.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			s.updateWriteDeadline()
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.fail(err)
				return
			}
		case <-ticker.Chan():
			s.updateWriteDeadline()
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.fail(err)
				return
			}
		}
	}
}

func (s *subscriber) fail(err error) {
	if s.onExit != nil {
		s.onExit(s, err)
	}
}

// enqueue hands msg to the writer without blocking.
// It reports false when the subscriber is closed or its buffer is full.
func (s *subscriber) enqueue(msg []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *subscriber) stop() {
	s.doneOnce.Do(func() { close(s.done) })
}

// close stops the writer and closes the connection. Safe from the writer goroutine.
func (s *subscriber) close() {
	s.stop()
	_ = s.conn.Close()
}

// closeGraceful sends a close frame with reason once the writer has exited.
// It must not be called from the writer goroutine.
func (s *subscriber) closeGraceful(reason string) {
	s.stop()
	s.wg.Wait()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	s.updateWriteDeadline()
	_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
	_ = s.conn.Close()
}

func (s *subscriber) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *subscriber) configurePongHandler() {
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})
}

// Socket deadlines are wall-clock; the injected clock only drives pings.
func (s *subscriber) updateWriteDeadline() {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
}

func (s *subscriber) extendReadDeadline() {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
}
