// ABOUTME: Tests for the WebSocket and REST control surfaces
// ABOUTME: Drives a real deck over synthetic files through httptest servers
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/auth"
	"github.com/Sendspin/sendspin-deck/internal/deck"
	"github.com/Sendspin/sendspin-deck/internal/mpeg/mpegtest"
	"github.com/Sendspin/sendspin-deck/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type fixture struct {
	deck   *deck.Deck
	server *Server
	http   *httptest.Server
	root   string
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()

	root := t.TempDir()
	d := deck.New(deck.Config{RootDir: root, Logger: zerolog.Nop()})
	s := New(Config{Name: "test-deck", Secret: secret, Logger: zerolog.Nop()}, d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { d.Run(ctx); done <- struct{}{} }()
	go func() { s.watchDeck(ctx); done <- struct{}{} }()

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.CloseClientConnections()
		ts.Close()
		d.Quit()
		cancel()
		<-done
		<-done
	})

	waitState(t, d, deck.Empty)
	return &fixture{deck: d, server: s, http: ts, root: root}
}

func (f *fixture) writeTrack(t *testing.T, name string) {
	t.Helper()
	mpegtest.WriteFile(t, f.root, name, mpegtest.ID3v2(64, false), mpegtest.Frames(mpegtest.Options{Frames: 20}))
}

func waitState(t *testing.T, d *deck.Deck, want deck.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for d.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, state is %s", want, d.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func doRequest(t *testing.T, method, target, contentType, body, token string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, target, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRESTOpenRoutes(t *testing.T) {
	f := newFixture(t, "")

	resp, body := doRequest(t, http.MethodGet, f.http.URL+"/api/health", "", "", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health: %d %v", resp.StatusCode, body)
	}

	resp, body = doRequest(t, http.MethodGet, f.http.URL+"/api/version", "", "", "")
	if resp.StatusCode != http.StatusOK || body["product"] != "Sendspin Deck" {
		t.Errorf("version: %d %v", resp.StatusCode, body)
	}
}

func TestRESTLoadAndQuery(t *testing.T) {
	f := newFixture(t, "")
	f.writeTrack(t, "song.mp3")

	form := url.Values{"path": {"song.mp3"}}.Encode()
	resp, body := doRequest(t, http.MethodPost, f.http.URL+"/api/deck/load", "application/x-www-form-urlencoded", form, "")
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("load: %d %v", resp.StatusCode, body)
	}
	waitState(t, f.deck, deck.Ready)

	_, body = doRequest(t, http.MethodGet, f.http.URL+"/api/deck/state", "", "", "")
	if body["state"] != "READY" {
		t.Errorf("state = %v", body["state"])
	}
	_, body = doRequest(t, http.MethodGet, f.http.URL+"/api/deck/filepath", "", "", "")
	if body["filepath"] != "song.mp3" {
		t.Errorf("filepath = %v", body["filepath"])
	}
	_, body = doRequest(t, http.MethodGet, f.http.URL+"/api/deck/status", "", "", "")
	if body["filename"] != "song" || body["bitrate"] != float64(128000) {
		t.Errorf("status = %v", body)
	}

	resp, body = doRequest(t, http.MethodPost, f.http.URL+"/api/deck/cue", "application/json", `{"cuepoint": 0.1}`, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cue: %d %v", resp.StatusCode, body)
	}
	waitState(t, f.deck, deck.Ready)
}

func TestRESTErrors(t *testing.T) {
	f := newFixture(t, "")

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"play from empty", "/api/deck/play", "", "", http.StatusConflict},
		{"missing file", "/api/deck/load", "application/json", `{"path": "nope.mp3"}`, http.StatusConflict},
		{"load without path", "/api/deck/load", "application/json", `{}`, http.StatusBadRequest},
		{"bad json", "/api/deck/cue", "application/json", `{"cuepoint":`, http.StatusBadRequest},
		{"bad cuepoint", "/api/deck/cue", "application/x-www-form-urlencoded", "cuepoint=soon", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodPost, f.http.URL+tt.path, tt.contentType, tt.body, "")
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (%v)", resp.StatusCode, tt.want, body)
			}
			if body["message"] == nil || body["message"] == "" {
				t.Errorf("missing message in %v", body)
			}
		})
	}
}

func TestRESTRequiresToken(t *testing.T) {
	f := newFixture(t, "s3cret")

	resp, _ := doRequest(t, http.MethodGet, f.http.URL+"/api/deck/state", "", "", "")
	if resp.StatusCode == http.StatusOK {
		t.Error("expected request without token to be refused")
	}

	bad, _ := auth.NewToken("other", "t", time.Minute)
	resp, _ = doRequest(t, http.MethodGet, f.http.URL+"/api/deck/state", "", "", bad)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", resp.StatusCode)
	}

	good, _ := auth.NewToken("s3cret", "t", time.Minute)
	resp, body := doRequest(t, http.MethodGet, f.http.URL+"/api/deck/state", "", "", good)
	if resp.StatusCode != http.StatusOK || body["state"] != "EMPTY" {
		t.Errorf("with token: %d %v", resp.StatusCode, body)
	}

	resp, _ = doRequest(t, http.MethodGet, f.http.URL+"/api/health", "", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health should stay open, got %d", resp.StatusCode)
	}
}

func dial(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/deck"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func hello(t *testing.T, conn *websocket.Conn, id, token string) {
	t.Helper()
	msg := protocol.Message{
		Type:    protocol.TypeClientHello,
		Payload: protocol.ClientHello{ClientID: id, Name: "tester", Version: protocol.Version, Token: token},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write hello: %v", err)
	}
}

// readUntil reads messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(protocol.Message) bool) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if msg.Type == typ && (match == nil || match(msg)) {
			return msg
		}
	}
}

func TestWebSocketHandshakeAndQuery(t *testing.T) {
	f := newFixture(t, "")
	conn := dial(t, f)
	hello(t, conn, "c1", "")

	sh := readUntil(t, conn, protocol.TypeServerHello, nil)
	var serverHello protocol.ServerHello
	if err := protocol.DecodePayload(sh.Payload, &serverHello); err != nil {
		t.Fatal(err)
	}
	if serverHello.Name != "test-deck" || serverHello.ServerID == "" || serverHello.Version != protocol.Version {
		t.Errorf("unexpected server hello %+v", serverHello)
	}

	conn.WriteJSON(protocol.Message{ID: "7", Type: protocol.TypeGetState})
	reply := readUntil(t, conn, protocol.TypeState, nil)
	if reply.ID != "7" {
		t.Errorf("reply ID = %q, want 7", reply.ID)
	}
	var st protocol.StateReply
	protocol.DecodePayload(reply.Payload, &st)
	if st.State != "EMPTY" {
		t.Errorf("state = %q", st.State)
	}

	conn.WriteJSON(protocol.Message{ID: "8", Type: "deck/spin"})
	reply = readUntil(t, conn, protocol.TypeError, nil)
	if reply.ID != "8" {
		t.Errorf("error reply ID = %q", reply.ID)
	}
}

func TestWebSocketCommandsPushStatus(t *testing.T) {
	f := newFixture(t, "")
	f.writeTrack(t, "song.mp3")
	conn := dial(t, f)
	hello(t, conn, "c1", "")
	readUntil(t, conn, protocol.TypeServerHello, nil)

	conn.WriteJSON(protocol.Message{ID: "1", Type: protocol.TypeLoad, Payload: protocol.Load{Path: "song.mp3"}})
	ack := readUntil(t, conn, protocol.TypeAck, nil)
	var a protocol.Ack
	protocol.DecodePayload(ack.Payload, &a)
	if !a.OK || a.Command != protocol.TypeLoad {
		t.Fatalf("unexpected ack %+v", a)
	}

	readUntil(t, conn, protocol.TypeStatus, func(m protocol.Message) bool {
		var st protocol.Status
		protocol.DecodePayload(m.Payload, &st)
		return st.State == "READY" && st.Filename == "song"
	})

	conn.WriteJSON(protocol.Message{ID: "2", Type: protocol.TypePause})
	ack = readUntil(t, conn, protocol.TypeAck, nil)
	protocol.DecodePayload(ack.Payload, &a)
	if a.OK || a.Error == "" || a.State != "READY" {
		t.Errorf("pause from READY should fail, got %+v", a)
	}
}

func TestWebSocketRejectsDuplicateID(t *testing.T) {
	f := newFixture(t, "")
	first := dial(t, f)
	hello(t, first, "same", "")
	readUntil(t, first, protocol.TypeServerHello, nil)

	second := dial(t, f)
	hello(t, second, "same", "")
	msg := readUntil(t, second, protocol.TypeServerError, nil)
	var se protocol.ServerError
	protocol.DecodePayload(msg.Payload, &se)
	if se.Error != "duplicate_client_id" {
		t.Errorf("error = %q", se.Error)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	f := newFixture(t, "s3cret")

	conn := dial(t, f)
	hello(t, conn, "c1", "")
	msg := readUntil(t, conn, protocol.TypeServerError, nil)
	var se protocol.ServerError
	protocol.DecodePayload(msg.Payload, &se)
	if se.Error != "unauthorized" {
		t.Errorf("error = %q", se.Error)
	}

	token, _ := auth.NewToken("s3cret", "c2", time.Minute)
	conn = dial(t, f)
	hello(t, conn, "c2", token)
	readUntil(t, conn, protocol.TypeServerHello, nil)
}
