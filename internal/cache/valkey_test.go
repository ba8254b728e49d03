package cache

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeValkey speaks enough RESP to serve PING, AUTH, SELECT, GET, SET and DEL.
type fakeValkey struct {
	ln       net.Listener
	mu       sync.Mutex
	data     map[string]string
	commands []string
}

func newFakeValkey(t *testing.T) *fakeValkey {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeValkey{ln: ln, data: map[string]string{}}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeValkey) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeValkey) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.commands = append(f.commands, strings.ToUpper(args[0]))
		var reply string
		switch strings.ToUpper(args[0]) {
		case "PING":
			reply = "+PONG\r\n"
		case "AUTH", "SELECT":
			reply = "+OK\r\n"
		case "SET":
			f.data[args[1]] = args[2]
			reply = "+OK\r\n"
		case "GET":
			if v, ok := f.data[args[1]]; ok {
				reply = fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
			} else {
				reply = "$-1\r\n"
			}
		case "DEL":
			delete(f.data, args[1])
			reply = ":1\r\n"
		default:
			reply = "-ERR unknown command\r\n"
		}
		f.mu.Unlock()
		if _, err := io.WriteString(conn, reply); err != nil {
			return
		}
	}
}

func readCommand(r *bufio.Reader) ([]string, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "*")))
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sizeLine, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(sizeLine, "$")))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func TestValkeyProviderRoundTrip(t *testing.T) {
	server := newFakeValkey(t)
	provider, err := NewValkeyProvider(ValkeyConfig{
		Addr:      server.ln.Addr().String(),
		Password:  "secret",
		DB:        2,
		KeyPrefix: "care:",
	})
	require.NoError(t, err)
	defer provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = provider.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, provider.Set(ctx, "k", []byte("value"), time.Minute))
	got, err := provider.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	server.mu.Lock()
	_, prefixed := server.data["care:k"]
	commands := append([]string(nil), server.commands...)
	server.mu.Unlock()
	assert.True(t, prefixed)
	assert.Contains(t, commands, "AUTH")
	assert.Contains(t, commands, "SELECT")

	require.NoError(t, provider.Del(ctx, "k"))
	_, err = provider.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestValkeyProviderRequiresAddr(t *testing.T) {
	_, err := NewValkeyProvider(ValkeyConfig{})
	assert.Error(t, err)
}

func TestValkeyProviderReusesConnections(t *testing.T) {
	server := newFakeValkey(t)
	provider, err := NewValkeyProvider(ValkeyConfig{Addr: server.ln.Addr().String(), Password: "secret"})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, provider.Set(ctx, "k", []byte("v"), 0))
	}

	server.mu.Lock()
	auths := 0
	for _, c := range server.commands {
		if c == "AUTH" {
			auths++
		}
	}
	server.mu.Unlock()
	assert.Equal(t, 1, auths, "idle connection should be reused")

	require.NoError(t, provider.Close())
	assert.Error(t, provider.Set(ctx, "k", []byte("v"), 0))
}

func TestValkeyProviderServerErrorIsNotRetried(t *testing.T) {
	server := newFakeValkey(t)
	provider, err := NewValkeyProvider(ValkeyConfig{Addr: server.ln.Addr().String(), MaxRetries: 3})
	require.NoError(t, err)
	defer provider.Close()

	_, err = provider.do(context.Background(), "FLUSHALL")
	var serverErr valkeyError
	require.ErrorAs(t, err, &serverErr)

	server.mu.Lock()
	flushes := 0
	for _, c := range server.commands {
		if c == "FLUSHALL" {
			flushes++
		}
	}
	server.mu.Unlock()
	assert.Equal(t, 1, flushes)
}
