package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recvault/internal/auth"
	"recvault/internal/testutil"
)

func TestSessionManager_IssueAndParse(t *testing.T) {
	clock := testutil.FixedClock()
	mgr, err := auth.NewSessionManager("secret", time.Hour, clock)
	if err != nil {
		t.Fatalf("NewSessionManager() unexpected error: %v", err)
	}

	identity := auth.Identity{UserID: "111", DisplayName: "Alice", AvatarURL: "http://a/1.png"}

	t.Run("round trips the identity", func(t *testing.T) {
		token, err := mgr.Issue(identity)
		if err != nil {
			t.Fatalf("Issue() unexpected error: %v", err)
		}

		got, err := mgr.Parse(token)
		if err != nil {
			t.Fatalf("Parse() unexpected error: %v", err)
		}
		if *got != identity {
			t.Errorf("Parse() = %+v, want %+v", got, identity)
		}
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		other, err := auth.NewSessionManager("different", time.Hour, clock)
		if err != nil {
			t.Fatalf("NewSessionManager() unexpected error: %v", err)
		}
		token, err := other.Issue(identity)
		if err != nil {
			t.Fatalf("Issue() unexpected error: %v", err)
		}

		if _, err := mgr.Parse(token); err == nil {
			t.Error("Parse() accepted a foreign token")
		}
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		token, err := mgr.Issue(identity)
		if err != nil {
			t.Fatalf("Issue() unexpected error: %v", err)
		}

		clock.Advance(2 * time.Hour)
		defer clock.Advance(-2 * time.Hour)

		if _, err := mgr.Parse(token); err == nil {
			t.Error("Parse() accepted an expired token")
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := mgr.Parse("not.a.token"); err == nil {
			t.Error("Parse() accepted garbage")
		}
	})
}

func TestSessionManager_EmptySecret(t *testing.T) {
	if _, err := auth.NewSessionManager("", time.Hour, testutil.FixedClock()); err == nil {
		t.Error("NewSessionManager() accepted an empty secret")
	}
}

func TestSessionManager_Cookies(t *testing.T) {
	mgr, err := auth.NewSessionManager("secret", time.Hour, testutil.FixedClock())
	if err != nil {
		t.Fatalf("NewSessionManager() unexpected error: %v", err)
	}

	t.Run("session cookie is scoped and HttpOnly", func(t *testing.T) {
		c := mgr.Cookie("token")
		if c.Name != auth.CookieName || c.Value != "token" {
			t.Errorf("cookie = %+v, want %s=token", c, auth.CookieName)
		}
		if !c.HttpOnly || c.Path != "/" || c.SameSite != http.SameSiteLaxMode {
			t.Errorf("cookie attributes = %+v, want HttpOnly Lax at /", c)
		}
	})

	t.Run("clear cookie expires immediately", func(t *testing.T) {
		c := mgr.ClearCookie()
		if c.MaxAge >= 0 || c.Value != "" {
			t.Errorf("clear cookie = %+v, want negative MaxAge and empty value", c)
		}
	})
}

func TestSessionManager_IdentityFromRequest(t *testing.T) {
	mgr, err := auth.NewSessionManager("secret", time.Hour, testutil.FixedClock())
	if err != nil {
		t.Fatalf("NewSessionManager() unexpected error: %v", err)
	}

	t.Run("returns the identity from a valid cookie", func(t *testing.T) {
		token, err := mgr.Issue(auth.Identity{UserID: "111"})
		if err != nil {
			t.Fatalf("Issue() unexpected error: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(mgr.Cookie(token))

		id := mgr.IdentityFromRequest(req)
		if id == nil || id.UserID != "111" {
			t.Errorf("IdentityFromRequest() = %+v, want user 111", id)
		}
	})

	t.Run("returns nil without a cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if id := mgr.IdentityFromRequest(req); id != nil {
			t.Errorf("IdentityFromRequest() = %+v, want nil", id)
		}
	})

	t.Run("returns nil for a tampered cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "tampered"})
		if id := mgr.IdentityFromRequest(req); id != nil {
			t.Errorf("IdentityFromRequest() = %+v, want nil", id)
		}
	})
}
