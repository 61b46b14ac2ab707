package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const maxLine = 4 << 20

// Socket is a unix-socket transport speaking JSON lines. Every line a
// client writes is a command; every Send is written to all clients.
type Socket struct {
	path   string
	ln     net.Listener
	logger *slog.Logger

	commands chan []byte
	done     chan struct{}
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	once  sync.Once
}

// Listen removes a stale socket file at path and starts accepting clients.
func Listen(path string, logger *slog.Logger) (*Socket, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("transport: remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", path, err)
	}
	s := &Socket{
		path:     path,
		ln:       ln,
		logger:   logger,
		commands: make(chan []byte, 64),
		done:     make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

func (s *Socket) Path() string {
	return s.path
}

func (s *Socket) Commands() <-chan []byte {
	return s.commands
}

func (s *Socket) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Error("transport: accept", "err", err)
			}
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.read(conn)
	}
}

func (s *Socket) read(conn net.Conn) {
	defer s.wg.Done()
	defer s.drop(conn)

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		cmd := bytes.Clone(line)
		select {
		case s.commands <- cmd:
		case <-s.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.logger.Debug("transport: client read", "err", err)
	}
}

func (s *Socket) drop(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

// Send writes an Envelope line to every connected client. Clients that
// cannot take the write are disconnected.
func (s *Socket) Send(channel string, v any) error {
	line, err := json.Marshal(Envelope{Channel: channel, Payload: v})
	if err != nil {
		return fmt.Errorf("transport: encode %s: %w", channel, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		if _, err := conn.Write(line); err != nil {
			s.logger.Debug("transport: drop client", "err", err)
			delete(s.conns, conn)
			_ = conn.Close()
		}
	}
	return nil
}

// Close stops accepting, disconnects clients and removes the socket file.
func (s *Socket) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ln.Close()
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		close(s.commands)
	})
	return err
}

// Dial connects to a running socket transport and writes payload as one
// command line. When replies is set it then collects Envelopes until ctx is
// done or the server hangs up.
func Dial(ctx context.Context, path string, payload []byte, replies func(Envelope)) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", path, err)
	}
	defer conn.Close()

	if _, err := conn.Write(append(bytes.TrimSpace(payload), '\n')); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	if replies == nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		var env Envelope
		if err := json.Unmarshal(sc.Bytes(), &env); err != nil {
			continue
		}
		replies(env)
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}
