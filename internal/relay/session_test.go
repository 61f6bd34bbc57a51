package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   userID,
		"role": "user",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newTestHub(t *testing.T) (*Hub, *fakeStore, *httptest.Server) {
	t.Helper()
	st := newFakeStore()
	registry := NewRegistry()
	hub := NewHub(registry, NewRouter(st, registry, nil), NewTokenVerifier(testSecret, st), nil)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.ServeConn(conn, r.URL.Query().Get("token"))
	}))
	t.Cleanup(srv.Close)
	return hub, st, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	return conn
}

func TestSessionAuth(t *testing.T) {
	t.Run("MissingToken", func(t *testing.T) {
		_, _, srv := newTestHub(t)
		conn := dial(t, srv, "")
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("expected an error frame before close, got %v", err)
		}
		var frame ErrorFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("failed to decode error frame: %v", err)
		}
		if frame.Type != FrameError || frame.Message != "Authentication token required" {
			t.Errorf("unexpected error frame: %+v", frame)
		}

		// The server closes with a policy violation after the error frame.
		_, _, err = conn.ReadMessage()
		if err == nil {
			t.Fatal("expected the connection to be closed")
		}
		if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Errorf("expected policy violation close, got %v", err)
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, _, srv := newTestHub(t)
		conn := dial(t, srv, signTestToken(t, "ghost"))
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("expected an error frame before close, got %v", err)
		}
		var frame ErrorFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("failed to decode error frame: %v", err)
		}
		if frame.Message != "User not found" {
			t.Errorf("unexpected error message: %q", frame.Message)
		}
	})

	t.Run("UnverifiedUser", func(t *testing.T) {
		_, st, srv := newTestHub(t)
		st.addUser("u1", "Alice")
		st.users["u1"].IsVerified = false

		conn := dial(t, srv, signTestToken(t, "u1"))
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("expected an error frame before close, got %v", err)
		}
		var frame ErrorFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("failed to decode error frame: %v", err)
		}
		if frame.Message != "Email verification required" {
			t.Errorf("unexpected error message: %q", frame.Message)
		}
	})
}

func TestSessionTakeover(t *testing.T) {
	hub, st, srv := newTestHub(t)
	st.addUser("u1", "Alice")
	token := signTestToken(t, "u1")

	first := dial(t, srv, token)
	defer first.Close()

	// Wait until the first session is registered before reconnecting.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Registry().Online() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first session never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	second := dial(t, srv, token)
	defer second.Close()

	// The superseded connection is closed with a normal-closure code.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	if err == nil {
		t.Fatal("expected the first connection to be closed")
	}
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal closure on takeover, got %v", err)
	}

	// Only the newer connection remains registered.
	deadline = time.Now().Add(2 * time.Second)
	for hub.Registry().Online() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected exactly 1 live connection, got %d", hub.Registry().Online())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	hub, st, srv := newTestHub(t)
	st.addUser("u1", "Alice")
	st.addUser("u2", "Bob")

	alice := dial(t, srv, signTestToken(t, "u1"))
	defer alice.Close()
	bob := dial(t, srv, signTestToken(t, "u2"))
	defer bob.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Registry().Online() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 live connections, got %d", hub.Registry().Online())
		}
		time.Sleep(10 * time.Millisecond)
	}

	payload := `{"type":"direct-message","receiverId":"u2","content":"hello bob"}`
	if err := alice.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}

	bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := bob.ReadMessage()
	if err != nil {
		t.Fatalf("receiver read failed: %v", err)
	}
	var env MessageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if env.Type != FrameDirectMessage || env.SenderID != "u1" || env.SenderName != "Alice" || env.Content != "hello bob" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if env.MessageID == "" {
		t.Error("envelope must carry the persisted message id")
	}

	// The sender gets the same envelope echoed back.
	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = alice.ReadMessage()
	if err != nil {
		t.Fatalf("sender echo read failed: %v", err)
	}
	var echo MessageEnvelope
	if err := json.Unmarshal(data, &echo); err != nil {
		t.Fatalf("failed to decode echo: %v", err)
	}
	if echo.MessageID != env.MessageID {
		t.Errorf("echo carries a different message id: %q vs %q", echo.MessageID, env.MessageID)
	}

	// A malformed frame is answered with an error frame on the same socket.
	if err := alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"direct-message"}`)); err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}
	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = alice.ReadMessage()
	if err != nil {
		t.Fatalf("error frame read failed: %v", err)
	}
	var frame ErrorFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("failed to decode error frame: %v", err)
	}
	if frame.Type != FrameError || frame.Message != "receiverId and content are required" {
		t.Errorf("unexpected error frame: %+v", frame)
	}
}
