package signaling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeServer acknowledges registration, then sends an offer and records what
// the client answers.
func fakeServer(t *testing.T, got chan<- Message) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			got <- msg
			if msg.Type == TypeRegister {
				_ = conn.WriteJSON(Message{Type: TypeRegistered})
				_ = conn.WriteJSON(Message{Type: TypeOffer, From: "viewer-1", Payload: json.RawMessage(`{"sdp":"x"}`)})
			}
		}
	}))
}

func TestClientRegisterAndDispatch(t *testing.T) {
	got := make(chan Message, 8)
	srv := fakeServer(t, got)
	defer srv.Close()

	registered := make(chan struct{}, 1)
	offers := make(chan string, 1)
	var c *Client
	c = NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), "host-1", ClientTypeHost, Handler{
		OnRegistered: func() { registered <- struct{}{} },
		OnOffer: func(from string, payload json.RawMessage) {
			offers <- from
			_ = c.SendAnswer(from, json.RawMessage(`{"sdp":"y"}`))
		},
	})
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	expect := func(typ string) Message {
		t.Helper()
		select {
		case m := <-got:
			if m.Type != typ {
				t.Fatalf("server got %q, want %q", m.Type, typ)
			}
			return m
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", typ)
		}
		return Message{}
	}

	reg := expect(TypeRegister)
	if reg.ID != "host-1" || reg.ClientType != ClientTypeHost {
		t.Errorf("register = %+v", reg)
	}
	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("OnRegistered not called")
	}
	if from := <-offers; from != "viewer-1" {
		t.Errorf("offer from %q", from)
	}
	if ans := expect(TypeAnswer); ans.Target != "viewer-1" {
		t.Errorf("answer target = %q", ans.Target)
	}
}

func TestClientSendBeforeConnect(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1", "x", ClientTypeViewer, Handler{})
	if err := c.SendOffer("host", nil); err == nil {
		t.Error("send before Connect succeeded")
	}
	c.Close()
	c.Close()
	select {
	case <-c.Done():
	default:
		t.Error("Done not closed after Close")
	}
}
