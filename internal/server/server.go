// Package server is the reference transport for the admission gate: a
// line-oriented TCP listener standing in for a real proxy frontend. A client
// opens a connection and sends one greeting line,
//
//	<INTENT> <virtual-host> [username]
//
// and receives either "OK <connection-id>" or "DENY <reason>" before the
// connection is closed or handed to the next pipeline stage. The production
// codec lives elsewhere; this transport exists so the repository runs end to
// end.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/drawbridge-proxy/drawbridge/internal/gate"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
	"github.com/drawbridge-proxy/drawbridge/pkg/text"
)

// Server accepts client greetings and runs each through the gate.
type Server struct {
	gate   *gate.Gate
	logger *log.Logger
	addr   net.Addr
	ready  chan struct{}
}

// New creates a server over the given gate.
func New(g *gate.Gate) *Server {
	return &Server{
		gate:   g,
		logger: log.Default(),
		ready:  make(chan struct{}),
	}
}

// Conn is one inbound connection attempt. It implements both the immutable
// view listeners receive and the disconnector the gate enforces with.
type Conn struct {
	id          string
	raw         net.Conn
	virtualHost string
}

var (
	_ event.InboundConnection = (*Conn)(nil)
	_ gate.Disconnector       = (*Conn)(nil)
)

// ID implements event.InboundConnection.
func (c *Conn) ID() string { return c.id }

// RemoteAddr implements event.InboundConnection.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// VirtualHost implements event.InboundConnection.
func (c *Conn) VirtualHost() string { return c.virtualHost }

// Disconnect implements gate.Disconnector: the reason is transmitted to the
// peer before the socket closes.
func (c *Conn) Disconnect(reason text.Component) error {
	if _, err := fmt.Fprintf(c.raw, "DENY %s\n", reason); err != nil {
		c.raw.Close()
		return err
	}
	return c.raw.Close()
}

// Listen serves on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.addr = ln.Addr()
	close(s.ready)
	s.logger.Printf("server: admission gate listening on %s", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			raw, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil // shutdown
				}
				return fmt.Errorf("accepting connection: %w", err)
			}
			// Each connection's handshake dispatch runs independently.
			go s.handleConn(gctx, raw)
		}
	})

	err = g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Ready is closed once the listener is bound; Addr is valid after that.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address once Ready has closed.
func (s *Server) Addr() net.Addr { return s.addr }

// handleConn reads the greeting, gates the handshake (and, for logins that
// name an account, the pre-login), and answers the peer.
func (s *Server) handleConn(ctx context.Context, raw net.Conn) {
	conn := &Conn{id: uuid.NewString(), raw: raw}

	scanner := bufio.NewScanner(raw)
	if !scanner.Scan() {
		raw.Close()
		return
	}

	intent, username, err := conn.parseGreeting(scanner.Text())
	if err != nil {
		s.logger.Printf("server: %s sent a malformed greeting: %v", raw.RemoteAddr(), err)
		conn.Disconnect(text.Plain("malformed greeting"))
		return
	}

	result := s.gate.HandleHandshake(ctx, conn, intent, conn)
	if !result.IsAllowed() {
		return // already disconnected by the gate
	}

	if intent == event.IntentLogin && username != "" {
		if result := s.gate.HandlePreLogin(ctx, conn, username, conn); !result.IsAllowed() {
			return
		}
	}

	if _, err := fmt.Fprintf(raw, "OK %s\n", conn.id); err != nil {
		s.logger.Printf("server: acknowledging %s: %v", conn.id, err)
	}
	// The session pipeline would take over here; the reference transport
	// just closes.
	raw.Close()
}

// parseGreeting fills the connection's virtual host and returns the declared
// intent and optional username.
func (c *Conn) parseGreeting(line string) (event.HandshakeIntent, string, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, "", fmt.Errorf("expected '<INTENT> <virtual-host> [username]', got %q", line)
	}
	intent, err := event.ParseIntent(fields[0])
	if err != nil {
		return 0, "", err
	}
	c.virtualHost = fields[1]
	username := ""
	if len(fields) > 2 {
		username = fields[2]
	}
	return intent, username, nil
}
