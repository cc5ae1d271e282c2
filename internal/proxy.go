package internal

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var (
	httpClientCacheMu sync.Mutex
	httpClientCache   = map[string]*http.Client{}
)

// ValidateProxyURL accepts an empty string (no proxy) or an http/https/socks5 URL.
func ValidateProxyURL(proxyURL string) error {
	if strings.TrimSpace(proxyURL) == "" {
		return nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "socks5" {
		return fmt.Errorf("unsupported proxy scheme: %s (supported: http, https, socks5)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("proxy host cannot be empty")
	}
	return nil
}

// CreateProxyHTTPClient returns a shared client for the (proxy, timeout) pair.
// RPC connections and explorer requests both go through it.
func CreateProxyHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	proxyURL = strings.TrimSpace(proxyURL)
	if err := ValidateProxyURL(proxyURL); err != nil {
		return nil, err
	}

	key := proxyURL + "|" + timeout.String()
	httpClientCacheMu.Lock()
	defer httpClientCacheMu.Unlock()
	if cached := httpClientCache[key]; cached != nil {
		return cached, nil
	}

	client := &http.Client{Timeout: timeout}
	if proxyURL != "" {
		u, _ := url.Parse(proxyURL)
		client.Transport = &http.Transport{
			Proxy:               http.ProxyURL(u),
			TLSHandshakeTimeout: 10 * time.Second,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		}
	}

	if len(httpClientCache) >= 32 {
		httpClientCache = map[string]*http.Client{}
	}
	httpClientCache[key] = client
	return client, nil
}
