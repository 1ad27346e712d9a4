package daemon

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"time"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 60 * time.Second
)

// Client is a workflow process's connection to the session daemon. It
// reconnects when it has no connection or the connection has shut down
// (rpc.ErrShutdown), re-sending Authenticate on every new connection. A
// failed connect sleeps for the current backoff, which starts at
// initialBackoff and doubles up to maxBackoff.
type Client struct {
	addr  string
	token string

	mu      sync.Mutex
	rpc     *rpc.Client
	backoff time.Duration
}

// NewClient creates a daemon client that connects lazily on first Call.
func NewClient(addr, token string) *Client {
	return &Client{addr: addr, token: token, backoff: initialBackoff}
}

// connect dials the daemon and authenticates, replacing any existing
// connection.
func (c *Client) connect() error {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial daemon at %s: %w", c.addr, err)
	}
	client := rpc.NewClient(conn)

	var ok bool
	if err := client.Call("Daemon.Authenticate", c.token, &ok); err != nil {
		_ = client.Close()
		if err.Error() == ErrBadToken.Error() {
			return ErrBadToken
		}
		return fmt.Errorf("authenticate with daemon: %w", err)
	}
	if !ok {
		_ = client.Close()
		return ErrBadToken
	}

	c.rpc = client
	return nil
}

// call invokes method, connecting first if there is no connection. On
// rpc.ErrShutdown it reconnects once and retries once; any other error is
// returned as is.
func (c *Client) call(method string, args, reply any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpc == nil {
		if err := c.reconnectLocked(); err != nil {
			return err
		}
	}

	err := c.rpc.Call(method, args, reply)
	if err == nil {
		c.backoff = initialBackoff
		return nil
	}
	if err != rpc.ErrShutdown {
		return err
	}

	// Connection died between calls; reconnect once and retry.
	if reconnectErr := c.reconnectLocked(); reconnectErr != nil {
		return reconnectErr
	}
	return c.rpc.Call(method, args, reply)
}

// reconnectLocked attempts a single reconnect, backing off
// exponentially (capped at maxBackoff) between failed attempts.
// Caller must hold c.mu.
func (c *Client) reconnectLocked() error {
	if c.rpc != nil {
		_ = c.rpc.Close()
		c.rpc = nil
	}

	err := c.connect()
	if err != nil {
		time.Sleep(c.backoff)
		c.backoff = min(c.backoff*2, maxBackoff)
		return err
	}
	c.backoff = initialBackoff
	return nil
}

// Hello performs the protocol handshake.
func (c *Client) Hello(containerInfo string) (HelloReply, error) {
	var reply HelloReply
	err := c.call("Daemon.Hello", HelloArgs{ContainerInfo: containerInfo, ProtocolVersion: ProtocolVersion}, &reply)
	return reply, err
}

// Register registers a new session record.
func (c *Client) Register(record SessionRecord) error {
	return c.call("Daemon.Register", record, &struct{}{})
}

// Update overwrites a session's stored record.
func (c *Client) Update(record SessionRecord) error {
	return c.call("Daemon.Update", record, &struct{}{})
}

// Heartbeat refreshes a session's last-heartbeat timestamp.
func (c *Client) Heartbeat(sessionID string) error {
	return c.call("Daemon.Heartbeat", sessionID, &struct{}{})
}

// ForceStop marks a session Stopped.
func (c *Client) ForceStop(sessionID string) error {
	return c.call("Daemon.ForceStop", sessionID, &struct{}{})
}

// List returns every registered session.
func (c *Client) List() ([]SessionRecord, error) {
	var reply ListReply
	err := c.call("Daemon.List", struct{}{}, &reply)
	return reply.Records, err
}

// Close releases the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc == nil {
		return nil
	}
	err := c.rpc.Close()
	c.rpc = nil
	return err
}

// SubscriberCallbacks is the RPC service a subscriber exposes on its
// callback connection; the daemon dials in as a client and invokes
// these methods whenever the registry changes.
type SubscriberCallbacks struct {
	OnSessionChanged   func(SessionRecord)
	OnDaemonRestarting func(newSha string)
}

// SessionChanged is invoked by the daemon when any session record
// changes.
func (s *SubscriberCallbacks) SessionChanged(record SessionRecord, reply *struct{}) error {
	if s.OnSessionChanged != nil {
		s.OnSessionChanged(record)
	}
	return nil
}

// DaemonRestarting is invoked by the daemon just before it restarts
// onto a new build.
func (s *SubscriberCallbacks) DaemonRestarting(newSha string, reply *struct{}) error {
	if s.OnDaemonRestarting != nil {
		s.OnDaemonRestarting(newSha)
	}
	return nil
}

// Subscribe dials the daemon's subscriber port and serves callbacks on
// that connection until it closes. Call this in its own goroutine.
func Subscribe(subscriberAddr string, callbacks *SubscriberCallbacks) error {
	conn, err := net.Dial("tcp", subscriberAddr)
	if err != nil {
		return fmt.Errorf("dial daemon subscriber port at %s: %w", subscriberAddr, err)
	}
	server := rpc.NewServer()
	if err := server.RegisterName("SubscriberCallbacks", callbacks); err != nil {
		_ = conn.Close()
		return fmt.Errorf("register subscriber callbacks: %w", err)
	}
	server.ServeConn(conn)
	return nil
}
