package seleniumhelpers

import (
	"context"
	"fmt"
	stdlog "log"
	"net"
	"net/url"
	"strconv"

	socks5 "github.com/armon/go-socks5"
	"github.com/rs/zerolog/log"
	"github.com/tebeka/selenium"
)

// ProxiedLiveServerURL is the live server URL seen by the browser when
// SELENIUM_LIVE_SERVER_PROXY is set. The proxy routes every host to the live
// server, so any name works; this one is reserved and never resolves.
const ProxiedLiveServerURL = "http://live-server.test"

// addrRewriter sends every proxied connection to a fixed destination. It
// also stands in for name resolution, as the requested host may not exist.
type addrRewriter struct {
	target *socks5.AddrSpec
}

func (a *addrRewriter) Rewrite(ctx context.Context, _ *socks5.Request) (context.Context, *socks5.AddrSpec) {
	return ctx, a.target
}

func (a *addrRewriter) Resolve(ctx context.Context, _ string) (context.Context, net.IP, error) {
	if a.target.IP != nil {
		return ctx, a.target.IP, nil
	}
	return ctx, net.IPv4(127, 0, 0, 1), nil
}

// liveServerProxy is a SOCKS5 server forwarding browser traffic to the live
// server, for browsers that cannot reach the test process's loopback.
type liveServerProxy struct {
	l    net.Listener
	done chan struct{}
}

func targetAddr(liveServerURL string) (*socks5.AddrSpec, error) {
	u, err := url.Parse(liveServerURL)
	if err != nil {
		return nil, err
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return nil, fmt.Errorf("live server URL %q: %w", liveServerURL, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("live server URL %q: bad port: %w", liveServerURL, err)
	}
	spec := &socks5.AddrSpec{Port: port}
	if ip := net.ParseIP(host); ip != nil {
		spec.IP = ip
	} else {
		spec.FQDN = host
	}
	return spec, nil
}

func startLiveServerProxy(listen, liveServerURL string) (*liveServerProxy, error) {
	target, err := targetAddr(liveServerURL)
	if err != nil {
		return nil, err
	}
	rw := &addrRewriter{target: target}
	srv, err := socks5.New(&socks5.Config{
		Resolver: rw,
		Rewriter: rw,
		Logger:   stdlog.New(log.Logger.With().Str("component", "socks5").Logger(), "", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("creating SOCKS5 proxy: %w", err)
	}
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listening for SOCKS5 proxy on %s: %w", listen, err)
	}
	p := &liveServerProxy{l: l, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		// Serve returns once the listener is closed.
		srv.Serve(l)
	}()
	log.Debug().Str("addr", l.Addr().String()).Str("target", target.Address()).Msg("live server proxy started")
	return p, nil
}

// Capability returns the proxy setting to request from the browser.
func (p *liveServerProxy) Capability() *selenium.Proxy {
	return &selenium.Proxy{
		Type:         selenium.Manual,
		SOCKS:        p.l.Addr().String(),
		SOCKSVersion: 5,
	}
}

func (p *liveServerProxy) Close() error {
	err := p.l.Close()
	<-p.done
	return err
}
