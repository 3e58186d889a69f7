package schedlib

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

var (
	ErrEmptyProxyURL          = errors.New("proxy URL cannot be empty")
	ErrUnsupportedProxyScheme = errors.New("unsupported proxy scheme")
	ErrInvalidProxyURL        = errors.New("invalid proxy URL")
)

var supportedProxySchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

// ProxyConfig holds a parsed outbound proxy configuration. Campus
// networks frequently require one, which is part of why the fetcher
// has a relay fallback in the first place.
type ProxyConfig struct {
	Scheme   string
	Host     string
	Username string
	Password string
}

// ParseProxyURL parses and validates a proxy URL string.
func ParseProxyURL(proxyURL string) (*ProxyConfig, error) {
	if proxyURL == "" {
		return nil, ErrEmptyProxyURL
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, ErrInvalidProxyURL
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if !supportedProxySchemes[parsed.Scheme] {
		return nil, ErrUnsupportedProxyScheme
	}
	cfg := &ProxyConfig{
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
	}
	if parsed.User != nil {
		cfg.Username = parsed.User.Username()
		cfg.Password, _ = parsed.User.Password()
	}
	return cfg, nil
}

// NewProxiedClient builds an *http.Client routing through the proxy.
// SOCKS5 proxies use a golang.org/x/net/proxy dialer; HTTP(S) proxies
// use the standard transport proxy hook. A nil config returns a plain
// client with the given timeout.
func NewProxiedClient(cfg *ProxyConfig, timeout time.Duration) (*http.Client, error) {
	if cfg == nil {
		return &http.Client{Timeout: timeout}, nil
	}
	switch cfg.Scheme {
	case "socks5":
		var auth *proxy.Auth
		if cfg.Username != "" {
			auth = &proxy.Auth{User: cfg.Username, Password: cfg.Password}
		}
		dialer, err := proxy.SOCKS5("tcp", cfg.Host, auth, proxy.Direct)
		if err != nil {
			return nil, err
		}
		transport := &http.Transport{Dial: dialer.Dial}
		return &http.Client{Transport: transport, Timeout: timeout}, nil
	default:
		proxyURL := &url.URL{Scheme: cfg.Scheme, Host: cfg.Host}
		if cfg.Username != "" {
			proxyURL.User = url.UserPassword(cfg.Username, cfg.Password)
		}
		transport := &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		return &http.Client{Transport: transport, Timeout: timeout}, nil
	}
}
