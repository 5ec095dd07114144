package sync

import (
	"bufio"
	"errors"
	"net"
	"sync"

	"watchlog/internal/logging"
)

// Server accepts TCP feed subscribers. Incoming lines are ignored.
type Server struct {
	Addr string
	Hub  *Hub

	mu sync.Mutex
	ln net.Listener
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run blocks until Close is called.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	log := logging.With().Str("component", "tcp-feed").Logger()
	log.Info().Str("addr", ln.Addr().String()).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.Hub.Add(conn)
		_, _ = conn.Write(s.Hub.welcome("tcp"))
		log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client connected")

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				log.Debug().Str("remote", c.RemoteAddr().String()).Msg("client disconnected")
			}()

			sc := bufio.NewScanner(c)
			for sc.Scan() {
				// drain
			}
		}(conn)
	}
}

// ListenAddr returns the bound address once Run has started listening.
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
