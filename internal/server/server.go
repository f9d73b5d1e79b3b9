// Package server accepts line protocol clients over TCP. Each connection
// gets its own goroutine that reads one request line at a time and writes
// exactly one response line back before reading the next.
package server

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/connection"
	"github.com/iliyamo/restaurant-reservation/internal/protocol"
	"github.com/iliyamo/restaurant-reservation/internal/ratelimit"
)

// MaxLineBytes bounds a single request line.
const MaxLineBytes = 64 * 1024

// Limiter meters requests per caller. *ratelimit.Limiter implements it.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
	Key(ip, user string) string
}

// Server is the line protocol listener.
type Server struct {
	Addr         string
	Dispatcher   *protocol.Dispatcher
	Registry     *connection.Registry
	Limiter      Limiter       // optional
	WriteTimeout time.Duration // per response line; zero means none

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// ListenAndServe listens on s.Addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	log.Printf("server: listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. On shutdown the
// listener and every open connection are closed and Serve waits for the
// connection goroutines to finish before returning nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
		s.closeAll()
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				log.Printf("server: stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Printf("server: accept: %v", err)
				continue
			}
			s.closeAll()
			s.wg.Wait()
			return err
		}
		s.track(c, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(c, false)
			s.ServeConn(ctx, c)
		}()
	}
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	switch {
	case add && s.closing:
		// accepted just as shutdown began
		_ = c.Close()
	case add:
		s.conns[c] = struct{}{}
	default:
		delete(s.conns, c)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for c := range s.conns {
		_ = c.Close()
	}
}

// ServeConn runs the request loop for one client and returns when the
// client quits, the connection fails or ctx is done.
func (s *Server) ServeConn(ctx context.Context, c net.Conn) {
	remote := c.RemoteAddr().String()
	sess := s.Registry.Add(remote, &connSender{conn: c, timeout: s.WriteTimeout})
	log.Printf("server: %s connected (session %s)", remote, sess.ID)
	defer func() {
		s.Registry.Remove(sess.ID)
		_ = c.Close()
		log.Printf("server: %s disconnected (session %s)", remote, sess.ID)
	}()

	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, 0, 4096), MaxLineBytes)
	for sc.Scan() {
		raw := sc.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}
		resp, quit := s.handle(ctx, sess, host(remote), raw)
		if err := sess.Send(resp); err != nil {
			return
		}
		if quit {
			return
		}
	}
	if err := sc.Err(); errors.Is(err, bufio.ErrTooLong) {
		_ = sess.Send("ERROR|BAD_REQUEST|line too long")
	}
}

func (s *Server) handle(ctx context.Context, sess *connection.Session, ip, raw string) (string, bool) {
	if s.Limiter != nil {
		user, _ := sess.Identity()
		res, err := s.Limiter.Allow(ctx, s.Limiter.Key(ip, user))
		if err != nil {
			log.Printf("server: rate limiter: %v", err)
		}
		if !res.Allowed {
			return "ERROR|RATE_LIMITED|" + strconv.Itoa(res.RetrySeconds()), false
		}
	}
	return s.Dispatcher.Handle(ctx, sess, raw)
}

func host(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}

// connSender writes response and push lines to a client.
type connSender struct {
	conn    net.Conn
	timeout time.Duration
}

func (w *connSender) Send(line string) error {
	if w.timeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	}
	_, err := w.conn.Write([]byte(line + "\n"))
	return err
}
