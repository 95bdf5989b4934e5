package socket

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"proofofawesome/engine/library"
	"proofofawesome/messaging/wire"
)

const writeTimeout = 10 * time.Second

// Socket is a websocket connection to the authoritative server carrying wire envelopes.
type Socket struct {
	conn      *websocket.Conn
	inbound   chan wire.Message
	done      chan struct{}
	writeMu   *deadlock.Mutex
	closeOnce deadlock.Once
}

// Dial connects to the server at url.
func Dial(ctx context.Context, url string) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	library.LogCLI("Connected to "+url, 4)
	return newSocket(conn), nil
}

func newSocket(conn *websocket.Conn) *Socket {
	s := &Socket{
		conn:    conn,
		inbound: make(chan wire.Message),
		done:    make(chan struct{}),
		writeMu: &deadlock.Mutex{},
	}
	go s.readLoop()
	return s
}

func (s *Socket) readLoop() {
	defer close(s.inbound)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				library.LogCLI("websocket read failed: "+err.Error(), 2)
			}
			return
		}
		m, err := wire.Decode(data)
		if err != nil {
			library.LogCLI("dropping frame: "+err.Error(), 2)
			continue
		}
		if !m.Kind().Inbound() {
			library.LogCLI(fmt.Sprintf("dropping %s frame, the server does not send those", m.Kind()), 2)
			continue
		}
		select {
		case s.inbound <- m:
		case <-s.done:
			return
		}
	}
}

func (s *Socket) Receive() <-chan wire.Message {
	return s.inbound
}

func (s *Socket) Send(ctx context.Context, m wire.Message) error {
	b, err := wire.Encode(m)
	if err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	sane := library.WatchExecution()
	defer sane()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
