package quoteapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock-scannerv1/internal/model"
)

// base32 secret for TOTP generation in tests
const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := New(Config{APIKey: "test-key", RootURL: srv.URL})
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestClient_ClassifiesThrottling(t *testing.T) {
	// HTTP 429
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"status":false,"message":"slow down"}`)
	})
	defer srv.Close()

	_, err := c.GetQuote(context.Background(), "AAPL")
	if !errors.Is(err, model.ErrThrottled) {
		t.Errorf("expected ErrThrottled for 429, got %v", err)
	}

	// In-band rate limit message with HTTP 200
	c2, srv2 := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":false,"message":"Access denied because of exceeding access rate"}`)
	})
	defer srv2.Close()

	_, err = c2.GetQuote(context.Background(), "AAPL")
	if !errors.Is(err, model.ErrThrottled) {
		t.Errorf("expected ErrThrottled for rate message, got %v", err)
	}
}

func TestClient_ClassifiesNotFoundAndOutage(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":false,"message":"invalid symbol"}`)
	})
	defer srv.Close()

	_, err := c.GetQuote(context.Background(), "NOPE")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	c2, srv2 := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `{}`)
	})
	defer srv2.Close()

	_, err = c2.GetQuote(context.Background(), "AAPL")
	if !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable for 502, got %v", err)
	}
}

func TestClient_CandlesParsing(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routes["market.candles"] {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["interval"] != "ONE_DAY" {
			t.Errorf("expected ONE_DAY interval, got %s", req["interval"])
		}
		writeJSON(w, http.StatusOK, `{
			"status": true,
			"data": [
				["2025-06-02T00:00:00Z", 100.0, 106.0, 99.5, 105.25, 1200000],
				["2025-06-03T00:00:00Z", 105.5, 108.0, 104.0, 107.75, 900000]
			]
		}`)
	})
	defer srv.Close()

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	bars, err := c.Candles(context.Background(), "AAPL", 24*time.Hour, from, to)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 105.25 || bars[0].Volume != 1200000 {
		t.Errorf("bar 0: got close=%v volume=%v", bars[0].Close, bars[0].Volume)
	}
	if !bars[1].TS.After(bars[0].TS) {
		t.Errorf("expected ascending timestamps, got %v then %v", bars[0].TS, bars[1].TS)
	}
}

func TestClient_LoginStoresTokens(t *testing.T) {
	var gotTOTP string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case routes["auth.login"]:
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			gotTOTP = req["totp"]
			writeJSON(w, http.StatusOK, `{
				"status": true,
				"data": {"jwtToken": "jwt-1", "refreshToken": "ref-1", "feedToken": "feed-1"}
			}`)
		case routes["user.profile"]:
			if r.Header.Get("Authorization") != "Bearer jwt-1" {
				t.Errorf("expected bearer token on profile call, got %q", r.Header.Get("Authorization"))
			}
			writeJSON(w, http.StatusOK, `{
				"status": true,
				"data": {"clientcode": "C123", "name": "Test User"}
			}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			writeJSON(w, http.StatusNotFound, `{}`)
		}
	})
	defer srv.Close()

	profile, err := c.Login(context.Background(), "C123", "pass", testTOTPSecret)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if profile.ClientCode != "C123" {
		t.Errorf("expected clientcode C123, got %s", profile.ClientCode)
	}
	if len(gotTOTP) != 6 {
		t.Errorf("expected 6-digit totp code, got %q", gotTOTP)
	}
	if !c.LoggedIn() {
		t.Error("expected LoggedIn after login")
	}
	if c.FeedToken() != "feed-1" {
		t.Errorf("expected feed token, got %q", c.FeedToken())
	}
}

func TestClient_RefreshSessionRotatesTokens(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routes["auth.refresh"] {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["refreshToken"] != "ref-1" {
			t.Errorf("expected held refresh token in request, got %q", req["refreshToken"])
		}
		writeJSON(w, http.StatusOK, `{
			"status": true,
			"data": {"jwtToken": "jwt-2", "feedToken": "feed-2"}
		}`)
	})
	defer srv.Close()
	c.setTokens("jwt-1", "ref-1", "feed-1")

	if err := c.RefreshSession(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if c.AccessToken() != "jwt-2" {
		t.Errorf("expected rotated access token, got %q", c.AccessToken())
	}
	if c.FeedToken() != "feed-2" {
		t.Errorf("expected rotated feed token, got %q", c.FeedToken())
	}
}

func TestClient_RefreshSessionWithoutToken(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a refresh token")
	})
	defer srv.Close()

	if err := c.RefreshSession(context.Background()); err == nil {
		t.Error("expected error when no refresh token is held")
	}
}

func TestClient_Search(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routes["market.search"] {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["searchtext"] != "AAPL" {
			t.Errorf("expected searchtext AAPL, got %q", req["searchtext"])
		}
		writeJSON(w, http.StatusOK, `{
			"status": true,
			"data": [
				{"symbol": "AAPL", "name": "Apple Inc", "exchange": "NASDAQ"},
				{"symbol": "AAPL.W", "name": "Apple Warrant", "exchange": "NASDAQ"}
			]
		}`)
	})
	defer srv.Close()

	matches, err := c.Search(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Symbol != "AAPL" || matches[0].Exchange != "NASDAQ" {
		t.Errorf("unexpected first match: %+v", matches[0])
	}
}

func TestClient_SessionExpiryHook(t *testing.T) {
	hookCalled := false
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"status":false,"error_type":"TokenException","message":"token expired"}`)
	})
	defer srv.Close()
	c.SessionExpiryHook = func() { hookCalled = true }

	_, err := c.GetQuote(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("expected error")
	}
	if !hookCalled {
		t.Error("expected session expiry hook to fire on 403 TokenException")
	}
}
