package daemon

import (
	"context"
	"log/slog"
	"net"
	"net/rpc"
	"sync/atomic"
)

// Server accepts two kinds of loopback connections: the main RPC port,
// where registered processes call Authenticate/Register/Update/etc,
// and the subscriber port, where a second connection per process is
// kept open purely so the daemon can call back into it.
type Server struct {
	registry *Registry
	token    string
	logger   *slog.Logger
}

// NewServer creates a Server backed by a fresh Registry.
func NewServer(token string, thresholds LivenessThresholds, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: NewRegistry(thresholds, logger),
		token:    token,
		logger:   logger,
	}
}

// Registry returns the session registry backing this server, so a
// caller can wire metrics or inspect state without a second accessor.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Serve accepts connections on ln and runs one RPC server per
// connection (each gets its own authentication state) until ctx is
// done or the listener closes.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	svc := &connService{registry: s.registry, token: s.token}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("Daemon", svc); err != nil {
		s.logger.Error("failed to register daemon RPC service", "error", err)
		return
	}
	rpcServer.ServeConn(conn)
}

// ServeSubscribers accepts callback connections: each one gets turned
// into an rpc.Client the registry uses to push session_changed and
// daemon_restarting notifications back to the caller's own RPC server
// running on that same connection.
func (s *Server) ServeSubscribers(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		client := rpc.NewClient(conn)
		id := s.registry.Subscribe(client)
		s.logger.Debug("subscriber connected", "subscriber", id)
	}
}

// connService is registered fresh for every accepted connection so
// authenticated is scoped to that one connection.
type connService struct {
	registry      *Registry
	token         string
	authenticated atomic.Bool
}

// Authenticate must be the first call on a connection; every other
// method rejects calls made before it succeeds.
func (c *connService) Authenticate(token string, reply *bool) error {
	if token != c.token {
		*reply = false
		return ErrBadToken
	}
	c.authenticated.Store(true)
	*reply = true
	return nil
}

func (c *connService) requireAuth() error {
	if !c.authenticated.Load() {
		return ErrUnauthenticated
	}
	return nil
}

// Hello exchanges protocol versions; a mismatched client is rejected
// before it can register anything the daemon might not understand.
func (c *connService) Hello(args HelloArgs, reply *HelloReply) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	if args.ProtocolVersion != ProtocolVersion {
		return ErrProtocolMismatch
	}
	reply.ServerVersion = ProtocolVersionString()
	return nil
}

// Register adds or replaces a session record.
func (c *connService) Register(record SessionRecord, reply *struct{}) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	c.registry.Register(record)
	return nil
}

// Update overwrites a session's stored record.
func (c *connService) Update(record SessionRecord, reply *struct{}) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	c.registry.Update(record)
	return nil
}

// Heartbeat refreshes a session's last-heartbeat timestamp.
func (c *connService) Heartbeat(sessionID string, reply *struct{}) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	return c.registry.Heartbeat(sessionID)
}

// ForceStop marks a session Stopped unconditionally.
func (c *connService) ForceStop(sessionID string, reply *struct{}) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	return c.registry.ForceStop(sessionID)
}

// List returns every registered session.
func (c *connService) List(args struct{}, reply *ListReply) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	reply.Records = c.registry.List()
	return nil
}

// ProtocolVersionString formats the daemon's protocol version for the
// Hello handshake reply.
func ProtocolVersionString() string {
	return "planning-agent-daemon/1"
}
