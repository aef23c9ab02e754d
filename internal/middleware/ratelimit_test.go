package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newRateLimitedRouter(rps float64, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(rps, burst))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func get(router *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_AllowsNormalTraffic(t *testing.T) {
	router := newRateLimitedRouter(10, 5)

	// First 5 requests should succeed (within burst)
	for i := 0; i < 5; i++ {
		if code := get(router, "10.0.0.1:1234"); code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, code)
		}
	}
}

func TestRateLimit_RejectsExcessiveTraffic(t *testing.T) {
	router := newRateLimitedRouter(1, 2)

	for i := 0; i < 2; i++ {
		get(router, "10.0.0.1:1234")
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("expected JSON error body, got %q", w.Header().Get("Content-Type"))
	}
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	router := newRateLimitedRouter(1, 1)

	if code := get(router, "10.0.0.1:1111"); code != http.StatusOK {
		t.Errorf("first client first request: expected 200, got %d", code)
	}
	// Same IP, different source port: same bucket.
	if code := get(router, "10.0.0.1:2222"); code != http.StatusTooManyRequests {
		t.Errorf("first client second request: expected 429, got %d", code)
	}
	if code := get(router, "10.0.0.2:1111"); code != http.StatusOK {
		t.Errorf("second client first request: expected 200, got %d", code)
	}
}

func TestRateLimit_DisabledWhenZero(t *testing.T) {
	router := newRateLimitedRouter(0, 0)

	for i := 0; i < 50; i++ {
		if code := get(router, "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200 with limiting disabled, got %d", i, code)
		}
	}
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func TestIPLimiters_EvictsIdleClients(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiters := newIPLimiters(1, 1, time.Minute, clock.now)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		limiters.allow(ip)
	}
	if got := limiters.size(); got != 3 {
		t.Fatalf("expected 3 tracked clients, got %d", got)
	}

	clock.t = clock.t.Add(30 * time.Second)
	limiters.allow("10.0.0.1")

	clock.t = clock.t.Add(45 * time.Second)
	limiters.allow("10.0.0.4")

	// .2 and .3 were idle for 75s and are gone; .1 was seen 45s ago.
	if got := limiters.size(); got != 2 {
		t.Errorf("expected 2 tracked clients after sweep, got %d", got)
	}
}

func TestIPLimiters_UsesClockForRefill(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiters := newIPLimiters(1, 1, time.Minute, clock.now)

	if !limiters.allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	if limiters.allow("10.0.0.1") {
		t.Fatal("second request in the same instant should be limited")
	}

	clock.t = clock.t.Add(time.Second)
	if !limiters.allow("10.0.0.1") {
		t.Error("bucket should have refilled after one second")
	}
}
