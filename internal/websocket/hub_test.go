package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"readtrack-backend/internal/middleware"
)

const testChannel = "reading_events"

// signToken issues an HS256 token in the identity service's format.
func signToken(t *testing.T, secret []byte, userID, role string, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func setupHub(t *testing.T) (*miniredis.Miniredis, *redis.Client, *middleware.JWTAuth, *httptest.Server, *Hub) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	auth := middleware.NewJWTAuth("test-secret")
	hub := NewHub(client, auth, testChannel)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return mr, client, auth, srv, hub
}

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
}

func TestHubRejectsMissingAndNonAdminTokens(t *testing.T) {
	_, _, auth, srv, _ := setupHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err == nil {
		t.Fatal("expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}

	reader := signToken(t, auth.Secret, "reader-1", "", time.Minute)
	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv, reader), nil)
	if err == nil {
		t.Fatal("expected dial with reader token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
}

func TestHubRelaysReadingEvents(t *testing.T) {
	mr, client, auth, srv, hub := setupHub(t)

	admin := signToken(t, auth.Secret, "admin-1", middleware.RoleAdmin, time.Minute)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, admin), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for mr.PubSubNumSub(testChannel)[testChannel] == 0 {
		if time.Now().After(deadline) {
			t.Fatal("hub never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Len() != 1 {
		t.Fatalf("expected 1 connection, got %d", hub.Len())
	}

	payload := `{"type":"session_completed"}`
	if err := client.Publish(context.Background(), testChannel, payload).Err(); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(msg) != payload {
		t.Fatalf("expected %s, got %s", payload, msg)
	}
}
