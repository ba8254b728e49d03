package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

// ValkeyConfig holds connection parameters for the Valkey server.
// MaxRetries counts extra attempts after a timeout or a dropped connection;
// server error replies are never retried. IdleConns caps the connections kept
// open between commands.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
	IdleConns    int
}

// ValkeyProvider implements Provider against a Valkey/Redis-compatible server
// over RESP2, keeping a small set of idle authenticated connections.
type ValkeyProvider struct {
	cfg ValkeyConfig

	mu     sync.Mutex
	idle   []*respConn
	closed bool
}

// NewValkeyProvider pings the server so bad credentials or addresses fail at
// startup rather than on the first request.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	applyValkeyDefaults(&cfg)
	p := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	r, err := p.do(ctx, "PING")
	if err != nil {
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	if !r.isStatus("PONG") {
		return nil, fmt.Errorf("valkey ping: unexpected reply %q", r.data)
	}
	return p, nil
}

// Get returns ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := p.do(ctx, "GET", p.prefixed(key))
	if err != nil {
		return nil, err
	}
	switch r.kind {
	case kindNull:
		return nil, ErrCacheMiss
	case kindBulk:
		return r.data, nil
	default:
		return nil, fmt.Errorf("valkey GET: unexpected reply kind %q", r.kind)
	}
}

// Set stores value with millisecond TTL precision. A non-positive ttl stores
// without expiry.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{p.prefixed(key), string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	r, err := p.do(ctx, "SET", args...)
	if err != nil {
		return err
	}
	if !r.isStatus("OK") {
		return fmt.Errorf("valkey SET: unexpected reply %q", r.data)
	}
	return nil
}

func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	_, err := p.do(ctx, "DEL", p.prefixed(key))
	return err
}

// Close drops every idle connection. Later commands fail.
func (p *ValkeyProvider) Close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	for _, c := range idle {
		c.close()
	}
	return nil
}

func (p *ValkeyProvider) prefixed(key string) string {
	return p.cfg.KeyPrefix + key
}

func (p *ValkeyProvider) do(ctx context.Context, command string, args ...string) (reply, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(retryDelay(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return reply{}, ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return reply{}, err
		}

		r, err := p.exec(ctx, command, args)
		if err == nil {
			return r, nil
		}
		lastErr = err
		if !retryable(err) {
			return reply{}, err
		}
	}
	return reply{}, lastErr
}

// exec runs one command on a pooled or fresh connection. The connection is
// returned to the pool only when the exchange completed cleanly.
func (p *ValkeyProvider) exec(ctx context.Context, command string, args []string) (reply, error) {
	c, err := p.acquire(ctx)
	if err != nil {
		return reply{}, err
	}
	r, err := c.roundTrip(append([]string{command}, args...))
	var serverErr valkeyError
	if err != nil && !errors.As(err, &serverErr) {
		c.close()
		return reply{}, err
	}
	p.release(c)
	return r, err
}

func (p *ValkeyProvider) acquire(ctx context.Context) (*respConn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New("valkey provider closed")
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	c, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.handshake(c); err != nil {
		c.close()
		return nil, err
	}
	return c, nil
}

func (p *ValkeyProvider) release(c *respConn) {
	p.mu.Lock()
	if !p.closed && len(p.idle) < p.cfg.IdleConns {
		p.idle = append(p.idle, c)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	c.close()
}

func (p *ValkeyProvider) dial(ctx context.Context) (*respConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()

	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		d := &tls.Dialer{Config: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: tlsServerName(p.cfg.Addr)}}
		conn, err = d.DialContext(dialCtx, "tcp", p.cfg.Addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(dialCtx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("valkey dial %s: %w", p.cfg.Addr, err)
	}
	return &respConn{
		conn:         conn,
		rd:           bufio.NewReader(conn),
		wr:           bufio.NewWriter(conn),
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
	}, nil
}

// handshake authenticates and selects the database on a new connection.
func (p *ValkeyProvider) handshake(c *respConn) error {
	if p.cfg.Password != "" {
		cmd := []string{"AUTH", p.cfg.Password}
		if p.cfg.Username != "" {
			cmd = []string{"AUTH", p.cfg.Username, p.cfg.Password}
		}
		if err := c.expectOK(cmd); err != nil {
			return fmt.Errorf("valkey auth: %w", err)
		}
	}
	if p.cfg.DB > 0 {
		if err := c.expectOK([]string{"SELECT", strconv.Itoa(p.cfg.DB)}); err != nil {
			return fmt.Errorf("valkey select %d: %w", p.cfg.DB, err)
		}
	}
	return nil
}

const (
	kindStatus  = '+'
	kindInteger = ':'
	kindBulk    = '$'
	kindNull    = '_'
)

type reply struct {
	kind byte
	data []byte
}

func (r reply) isStatus(want string) bool {
	return r.kind == kindStatus && string(r.data) == want
}

// valkeyError is an error reply sent by the server.
type valkeyError string

func (e valkeyError) Error() string { return "valkey: " + string(e) }

type respConn struct {
	conn         net.Conn
	rd           *bufio.Reader
	wr           *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *respConn) close() { _ = c.conn.Close() }

func (c *respConn) roundTrip(cmd []string) (reply, error) {
	if err := c.send(cmd); err != nil {
		return reply{}, err
	}
	return c.receive()
}

func (c *respConn) expectOK(cmd []string) error {
	r, err := c.roundTrip(cmd)
	if err != nil {
		return err
	}
	if !r.isStatus("OK") {
		return fmt.Errorf("unexpected reply %q", r.data)
	}
	return nil
}

// send writes cmd as a RESP array of bulk strings.
func (c *respConn) send(cmd []string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(len(cmd)), 10)
	buf = append(buf, '\r', '\n')
	for _, arg := range cmd {
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(arg)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, arg...)
		buf = append(buf, '\r', '\n')
	}
	if _, err := c.wr.Write(buf); err != nil {
		return err
	}
	return c.wr.Flush()
}

func (c *respConn) receive() (reply, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return reply{}, err
	}
	line, err := c.rd.ReadSlice('\n')
	if err != nil {
		return reply{}, err
	}
	if len(line) < 3 || line[len(line)-2] != '\r' {
		return reply{}, fmt.Errorf("valkey: malformed reply line %q", line)
	}
	kind, body := line[0], string(line[1:len(line)-2])

	switch kind {
	case kindStatus, kindInteger:
		return reply{kind: kind, data: []byte(body)}, nil
	case '-':
		return reply{}, valkeyError(body)
	case kindBulk:
		n, err := strconv.Atoi(body)
		if err != nil {
			return reply{}, fmt.Errorf("valkey: bad bulk length %q", body)
		}
		if n < 0 {
			return reply{kind: kindNull}, nil
		}
		data := make([]byte, n+2)
		if _, err := io.ReadFull(c.rd, data); err != nil {
			return reply{}, err
		}
		if data[n] != '\r' || data[n+1] != '\n' {
			return reply{}, errors.New("valkey: bulk string missing terminator")
		}
		return reply{kind: kindBulk, data: data[:n]}, nil
	default:
		return reply{}, fmt.Errorf("valkey: unsupported reply type %q", kind)
	}
}

func applyValkeyDefaults(cfg *ValkeyConfig) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.IdleConns <= 0 {
		cfg.IdleConns = 4
	}
}

func retryDelay(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * 25 * time.Millisecond
}

// retryable reports timeouts and connections dropped mid-exchange, which is
// how a stale pooled connection fails.
func retryable(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func tlsServerName(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
