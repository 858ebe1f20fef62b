package importer

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/kapu/adgenius-go/pkg/errors"
	"go.uber.org/zap"
)

func TestImportRefusesInternalHosts(t *testing.T) {
	imp := NewProductImporter(nil, zap.NewNop())

	for _, raw := range []string{
		"http://127.0.0.1:8080/p",
		"http://localhost/p",
		"http://api.localhost/p",
		"http://[::1]/p",
		"http://169.254.169.254/latest/meta-data/",
		"http://10.0.0.5/p",
		"http://192.168.1.1/p",
		"http://[::ffff:172.16.0.1]/p",
		"http://0.0.0.0/p",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := imp.Import(context.Background(), raw)
			if errors.CodeOf(err) != errors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGuardedClientRefusesLoopbackDial(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	// Skip the URL check so the dial-time check is the one exercised.
	imp := &ProductImporter{client: newGuardedClient(time.Second), logger: zap.NewNop()}
	_, err := imp.Import(context.Background(), srv.URL)
	if errors.CodeOf(err) != errors.CodeValidation || !stderrors.Is(err, errBlockedAddress) {
		t.Fatalf("expected blocked address, got %v", err)
	}
	if called {
		t.Fatalf("loopback server must not be reached")
	}
}

func TestDialControl(t *testing.T) {
	tests := []struct {
		address string
		allowed bool
	}{
		{"127.0.0.1:80", false},
		{"169.254.169.254:80", false},
		{"10.1.2.3:443", false},
		{"100.64.0.1:443", false},
		{"[::1]:443", false},
		{"[fe80::1]:443", false},
		{"[fd00::1]:443", false},
		{"[::ffff:192.168.0.1]:80", false},
		{"93.184.216.34:443", true},
		{"[2606:4700::1111]:443", true},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := dialControl("tcp", tt.address, nil)
			if (err == nil) != tt.allowed {
				t.Fatalf("dialControl(%s) = %v, allowed %v", tt.address, err, tt.allowed)
			}
		})
	}
}

func TestCheckRedirect(t *testing.T) {
	req := func(raw string) *http.Request {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		return &http.Request{URL: u}
	}

	if err := checkRedirect(req("https://shop.example/p"), nil); err != nil {
		t.Fatalf("public redirect should be followed: %v", err)
	}
	if err := checkRedirect(req("http://169.254.169.254/"), nil); !stderrors.Is(err, errBlockedAddress) {
		t.Fatalf("redirect to metadata address should be refused, got %v", err)
	}
	if err := checkRedirect(req("file:///etc/passwd"), nil); err == nil {
		t.Fatalf("non-http redirect should be refused")
	}
	via := make([]*http.Request, 3)
	if err := checkRedirect(req("https://shop.example/p"), via); err == nil {
		t.Fatalf("redirect chain should be capped")
	}
}
