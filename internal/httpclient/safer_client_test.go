package httpclient

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestNewSaferClient(t *testing.T) {
	client := NewSaferClient(30 * time.Second)

	if client.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", client.Timeout)
	}
	if client.maxRedirects != 10 {
		t.Errorf("Expected maxRedirects 10, got %d", client.maxRedirects)
	}
	if !client.blockPrivateIP {
		t.Error("Expected blockPrivateIP to be true")
	}
}

func TestValidateURL(t *testing.T) {
	client := NewSaferClient(30 * time.Second)

	tests := []struct {
		name        string
		url         string
		shouldErr   bool
		errContains string
	}{
		{name: "Valid HTTPS URL", url: "https://api.anthropic.com/v1/messages"},
		{name: "Valid HTTP URL", url: "http://example.com"},
		{name: "File scheme blocked", url: "file:///etc/passwd", shouldErr: true, errContains: "scheme"},
		{name: "Gopher scheme blocked", url: "gopher://example.com", shouldErr: true, errContains: "scheme"},
		{name: "Localhost blocked", url: "http://localhost/admin", shouldErr: true, errContains: "localhost"},
		{name: "Loopback IP blocked", url: "http://127.0.0.1/", shouldErr: true, errContains: "private IP"},
		{name: "Localhost subdomain blocked", url: "http://admin.localhost/", shouldErr: true, errContains: "localhost"},
		{name: "10.x private network blocked", url: "http://10.0.0.1/", shouldErr: true, errContains: "private IP"},
		{name: "192.168.x private network blocked", url: "http://192.168.1.1/", shouldErr: true, errContains: "private IP"},
		{name: "Link-local metadata endpoint blocked", url: "http://169.254.169.254/metadata", shouldErr: true, errContains: "private IP"},
		{name: "Credential injection blocked", url: "http://evil.com@localhost/", shouldErr: true, errContains: "@"},
		{name: "Empty hostname", url: "http:///path", shouldErr: true, errContains: "hostname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			if err != nil {
				t.Fatalf("Failed to parse test URL: %v", err)
			}

			err = client.validateURL(u)
			if tt.shouldErr {
				if err == nil {
					t.Fatalf("Expected error for %s", tt.url)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Expected error containing %q, got %q", tt.errContains, err.Error())
				}
			} else if err != nil {
				t.Errorf("Unexpected error for %s: %v", tt.url, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{"10.1.2.3", "172.16.0.1", "192.168.0.1", "127.0.0.1", "169.254.1.1", "0.0.0.0", "224.0.0.1", "::1", "fc00::1"}
	for _, s := range private {
		if !isPrivateIP(net.ParseIP(s)) {
			t.Errorf("Expected %s to be private", s)
		}
	}

	public := []string{"8.8.8.8", "1.1.1.1", "160.79.104.10", "2607:6bc0::10"}
	for _, s := range public {
		if isPrivateIP(net.ParseIP(s)) {
			t.Errorf("Expected %s to be public", s)
		}
	}
}

func TestDoBlocksPrivateTargets(t *testing.T) {
	client := NewSaferClient(5 * time.Second)

	req, err := http.NewRequest("GET", "http://127.0.0.1:9999/", nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}

	_, err = client.Do(req)
	if err == nil {
		t.Fatal("Expected SSRF protection to block loopback request")
	}
	if !strings.Contains(err.Error(), "SSRF") {
		t.Errorf("Expected SSRF error, got %v", err)
	}
}

func TestWrapClientAllowsLocalhost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := WrapClient(server.Client())

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Expected wrapped client to reach httptest server: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
