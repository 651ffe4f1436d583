package support

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"streamgate/internal/domain"
)

// CreateTransport builds a one-shot transport that reaches upstream hosts
// through the given egress proxy. Keep-alives are disabled so each relay
// attempt and each probe gets a fresh connection.
func CreateTransport(egress domain.Proxy, timeout time.Duration) (*http.Transport, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 0,
		}).DialContext,
		DisableKeepAlives:     true,
		MaxIdleConns:          0,
		MaxIdleConnsPerHost:   0,
		IdleConnTimeout:       0,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	switch strings.ToLower(strings.TrimSpace(egress.Protocol)) {
	case domain.ProtocolHTTP, "https":
		proxyURL := &url.URL{
			Scheme: "http",
			Host:   egress.Address(),
		}
		if egress.HasAuth() {
			proxyURL.User = url.UserPassword(egress.Username, egress.Password)
		}
		transport.Proxy = http.ProxyURL(proxyURL)

	case domain.ProtocolSOCKS5:
		var auth *proxy.Auth
		if egress.HasAuth() {
			auth = &proxy.Auth{User: egress.Username, Password: egress.Password}
		}
		socksDialer, err := proxy.SOCKS5("tcp", egress.Address(), auth, &net.Dialer{Timeout: timeout})
		if err != nil {
			return nil, err
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if contextDialer, ok := socksDialer.(proxy.ContextDialer); ok {
				return contextDialer.DialContext(ctx, network, addr)
			}
			return socksDialer.Dial(network, addr)
		}

	case domain.ProtocolSOCKS4:
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialSOCKS4(ctx, egress, addr, timeout)
		}

	default:
		return nil, fmt.Errorf("unsupported proxy protocol %q", egress.Protocol)
	}

	return transport, nil
}

func dialSOCKS4(ctx context.Context, egress domain.Proxy, target string, timeout time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", egress.Address())
	if err != nil {
		return nil, err
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		_ = conn.Close()
		return nil, fmt.Errorf("invalid target port %q", portStr)
	}

	ip := net.ParseIP(host)
	ipBytes := ip.To4()
	var domainName string
	if ipBytes == nil {
		ipBytes = []byte{0x00, 0x00, 0x00, 0x01} // SOCKS4a
		domainName = host
	}

	userField := ""
	if egress.Username != "" {
		userField = egress.Username
		if egress.Password != "" {
			userField = fmt.Sprintf("%s:%s", egress.Username, egress.Password)
		}
	}

	req := []byte{0x04, 0x01, byte(port >> 8), byte(port)}
	req = append(req, ipBytes...)
	req = append(req, []byte(userField)...)
	req = append(req, 0x00)
	if domainName != "" {
		req = append(req, []byte(domainName)...)
		req = append(req, 0x00)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	if _, err := conn.Write(req); err != nil {
		_ = conn.Close()
		return nil, err
	}

	resp := make([]byte, 8)
	if _, err := io.ReadFull(conn, resp); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if len(resp) < 2 || resp[1] != 0x5A {
		_ = conn.Close()
		return nil, fmt.Errorf("socks4 connect failed with code %d", resp[1])
	}

	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}
