package server

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Spok95/bpark/internal/infra/metrics"
)

// Server is the thin TCP adapter around the dispatcher: it frames the
// text protocol as lines, tags every connection with an opaque id and
// reports disconnects. On shutdown it broadcasts SHUTDOWN to every
// connected client before closing the listener.
type Server struct {
	addr string
	log  *slog.Logger
	d    *Dispatcher

	mu    sync.Mutex
	conns map[string]net.Conn
}

func New(addr string, log *slog.Logger, d *Dispatcher) *Server {
	return &Server{addr: addr, log: log, d: d, conns: make(map[string]net.Conn)}
}

func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info("listening for clients", "addr", s.addr)

	go func() {
		<-ctx.Done()
		s.broadcast("SHUTDOWN")
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.serve(ctx, conn)
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()

	s.mu.Lock()
	s.conns[id] = conn
	s.mu.Unlock()
	metrics.ConnectionsActive.Inc()
	s.log.Info("client connected", "conn", id, "remote", conn.RemoteAddr().String())

	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		metrics.ConnectionsActive.Dec()
		s.d.Disconnect(id)
		_ = conn.Close()
		s.log.Info("client disconnected", "conn", id)
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		resp := s.d.Handle(ctx, id, line)
		if err := resp.Write(conn); err != nil {
			s.log.Error("write failed", "err", err, "conn", id)
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.log.Warn("read failed", "err", err, "conn", id)
	}
}

func (s *Server) broadcast(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.conns {
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			s.log.Warn("shutdown notice failed", "err", err, "conn", id)
		}
	}
}
