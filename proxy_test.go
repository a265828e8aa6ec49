package seleniumhelpers

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	socks5 "github.com/armon/go-socks5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetAddr(t *testing.T) {
	tests := []struct {
		in       string
		wantIP   string
		wantFQDN string
		wantPort int
	}{
		{in: "http://127.0.0.1:8081", wantIP: "127.0.0.1", wantPort: 8081},
		{in: "http://[::1]:9000/", wantIP: "::1", wantPort: 9000},
		{in: "http://localhost:3000", wantFQDN: "localhost", wantPort: 3000},
	}
	for _, test := range tests {
		got, err := targetAddr(test.in)
		require.NoError(t, err, test.in)
		if test.wantIP != "" {
			assert.Equal(t, test.wantIP, got.IP.String(), test.in)
		}
		assert.Equal(t, test.wantFQDN, got.FQDN, test.in)
		assert.Equal(t, test.wantPort, got.Port, test.in)
	}

	for _, bad := range []string{"http://127.0.0.1", "http://127.0.0.1:http", "::"} {
		if _, err := targetAddr(bad); err == nil {
			t.Errorf("targetAddr(%q) returned nil error", bad)
		}
	}
}

func TestAddrRewriter(t *testing.T) {
	target := &socks5.AddrSpec{FQDN: "localhost", Port: 80}
	r := &addrRewriter{target: target}
	ctx := context.Background()
	gotCtx, got := r.Rewrite(ctx, &socks5.Request{DestAddr: &socks5.AddrSpec{FQDN: "example.com", Port: 443}})
	assert.Equal(t, ctx, gotCtx)
	assert.Same(t, target, got)

	_, ip, err := r.Resolve(ctx, "live-server.test")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip.String())
}

// socksConnect opens a SOCKS5 CONNECT tunnel through proxy to host:port.
func socksConnect(t *testing.T, proxy, host string, port uint16) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", proxy)
	require.NoError(t, err)

	// No authentication.
	_, err = conn.Write([]byte{5, 1, 0})
	require.NoError(t, err)
	method := make([]byte, 2)
	_, err = io.ReadFull(conn, method)
	require.NoError(t, err)
	require.Equal(t, []byte{5, 0}, method)

	req := []byte{5, 1, 0, 3, byte(len(host))}
	req = append(req, host...)
	req = binary.BigEndian.AppendUint16(req, port)
	_, err = conn.Write(req)
	require.NoError(t, err)

	// Reply with an IPv4 bound address.
	reply := make([]byte, 10)
	_, err = io.ReadFull(conn, reply)
	require.NoError(t, err)
	require.Equal(t, byte(0), reply[1], "SOCKS5 CONNECT failed with code %d", reply[1])
	return conn
}

func TestLiveServerProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("live:" + r.Host))
	}))
	defer srv.Close()

	p, err := startLiveServerProxy("127.0.0.1:0", srv.URL)
	require.NoError(t, err)
	defer p.Close()

	proxyCap := p.Capability()
	conn := socksConnect(t, proxyCap.SOCKS, "live-server.test", 80)
	defer conn.Close()

	req, err := http.NewRequest(http.MethodGet, ProxiedLiveServerURL+"/", nil)
	require.NoError(t, err)
	require.NoError(t, req.Write(conn))
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "live:live-server.test", string(body))
}

func TestLiveServerProxyClose(t *testing.T) {
	p, err := startLiveServerProxy("127.0.0.1:0", "http://127.0.0.1:1")
	require.NoError(t, err)
	addr := p.l.Addr().String()
	p.Close()

	if conn, err := net.Dial("tcp", addr); err == nil {
		conn.Close()
		t.Errorf("proxy still accepting connections after Close")
	}
}
