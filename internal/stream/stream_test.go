package stream

import (
	"bufio"
	"context"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func solidSource() Source {
	img := image.NewRGBA(image.Rect(0, 0, 32, 18))
	for i := range img.Pix {
		img.Pix[i] = 0x7f
	}
	return SourceFunc(func() (*image.RGBA, error) { return img, nil })
}

func TestLimiter(t *testing.T) {
	l := newStreamLimiter(2)

	if !l.acquire("1.2.3.4") || !l.acquire("1.2.3.4") {
		t.Fatal("first two connections must be admitted")
	}
	if l.acquire("1.2.3.4") {
		t.Fatal("third connection from same IP must be rejected")
	}
	if !l.acquire("5.6.7.8") {
		t.Fatal("different IP must be admitted")
	}

	l.release("1.2.3.4")
	if !l.acquire("1.2.3.4") {
		t.Fatal("released slot must be reusable")
	}
	if got := l.count("5.6.7.8"); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestLimiterGlobalCap(t *testing.T) {
	l := newStreamLimiter(10)
	l.maxTotal = 3

	for i := 0; i < 3; i++ {
		if !l.acquire("10.0.0.1") {
			t.Fatalf("connection %d rejected before global cap", i)
		}
	}
	if l.acquire("10.0.0.2") {
		t.Fatal("global cap not enforced")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "192.168.1.1:12345", nil, false, "192.168.1.1"},
		{"ipv6", "[::1]:12345", nil, false, "::1"},
		{"no port", "192.168.1.1", nil, false, "192.168.1.1"},
		{"xff untrusted", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "1.2.3.4"}, false, "10.0.0.1"},
		{"xff trusted", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "1.2.3.4"}, true, "1.2.3.4"},
		{"xff chain", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, true, "1.2.3.4"},
		{"x-real-ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "9.9.9.9"}, true, "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandlerInvalidFPS(t *testing.T) {
	h := NewHandler(solidSource(), DefaultConfig(), testLogger())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stream?fps=999", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerServesFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FPS = 60
	h := NewHandler(solidSource(), cfg, testLogger())

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "multipart/x-mixed-replace") {
		t.Fatalf("content type = %q", ct)
	}

	// Read until the first JPEG part header arrives.
	br := bufio.NewReader(resp.Body)
	deadline := time.Now().Add(2 * time.Second)
	var sawBoundary, sawJPEG bool
	for time.Now().Before(deadline) && !(sawBoundary && sawJPEG) {
		line, err := br.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if strings.HasPrefix(line, "--"+boundary) {
			sawBoundary = true
		}
		if strings.HasPrefix(line, "Content-Type: image/jpeg") {
			sawJPEG = true
		}
	}
	if !sawBoundary || !sawJPEG {
		t.Fatalf("no MJPEG part seen (boundary=%v jpeg=%v)", sawBoundary, sawJPEG)
	}
}

func TestHandlerRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentPerIP = 1
	h := NewHandler(solidSource(), cfg, testLogger())

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("first stream: %v", err)
	}
	defer resp.Body.Close()

	// Second connection from the same IP must be rejected.
	resp2, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("second stream: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp2.StatusCode)
	}
	if resp2.Header.Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}
