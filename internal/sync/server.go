package sync

import (
	"bufio"
	"errors"
	"net"
	"sync"

	"github.com/charmbracelet/log"
)

// Server is the plain TCP line feed: one JSON event per line.
type Server struct {
	Addr   string
	Hub    *Hub
	Logger *log.Logger

	mu sync.Mutex
	ln net.Listener
}

func NewServer(addr string, hub *Hub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{Addr: addr, Hub: hub, Logger: logger}
}

func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.Logger.Infof("[tcp-sync] listening on %s", s.Addr)
	return s.Serve(ln)
}

// Serve accepts clients on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}

		if err := s.Hub.AddTCP(conn); err != nil {
			s.Logger.Warn("[tcp-sync] client dropped", "addr", conn.RemoteAddr(), "err", err)
			continue
		}
		s.Logger.Info("[tcp-sync] client connected", "addr", conn.RemoteAddr())

		go func(c net.Conn) {
			defer func() {
				s.Hub.RemoveTCP(c)
				s.Logger.Info("[tcp-sync] client disconnected", "addr", c.RemoteAddr())
			}()

			// feed is one-way; drain until the client hangs up
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

// Close stops accepting; connected clients stay until they hang up.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
