package netmon

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockToken implements mqtt.Token for testing.
type mockToken struct {
	err error
}

func (m *mockToken) Wait() bool                     { return true }
func (m *mockToken) WaitTimeout(time.Duration) bool { return true }
func (m *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *mockToken) Error() error { return m.err }

// mockClient implements MQTTClient for testing.
type mockClient struct {
	connected bool
}

func (m *mockClient) Connect() mqtt.Token {
	m.connected = true
	return &mockToken{}
}
func (m *mockClient) Disconnect(quiesce uint) { m.connected = false }
func (m *mockClient) IsConnected() bool       { return m.connected }

func TestManualMonitorNotifies(t *testing.T) {
	m := NewManual(false)

	var mu sync.Mutex
	var got []bool
	cancel := m.Subscribe(func(online bool) {
		mu.Lock()
		got = append(got, online)
		mu.Unlock()
	})
	defer cancel()

	m.SetOnline(true)
	m.SetOnline(true) // duplicate transition is suppressed
	m.SetOnline(false)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Fatalf("expected [true false], got %v", got)
	}
	if m.Online() {
		t.Fatal("expected offline")
	}
}

func TestManualMonitorUnsubscribe(t *testing.T) {
	m := NewManual(false)

	calls := 0
	cancel := m.Subscribe(func(bool) { calls++ })
	cancel()

	m.SetOnline(true)
	if calls != 0 {
		t.Fatalf("expected no callbacks after cancel, got %d", calls)
	}
}

func TestMQTTMonitorSessionTransitions(t *testing.T) {
	var capturedOpts *mqtt.ClientOptions
	client := &mockClient{}

	m := NewMQTTWithClient("localhost", 1883, "", "", testLogger(),
		func(opts *mqtt.ClientOptions) MQTTClient {
			capturedOpts = opts
			return client
		})

	var mu sync.Mutex
	var got []bool
	defer m.Subscribe(func(online bool) {
		mu.Lock()
		got = append(got, online)
		mu.Unlock()
	})()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if capturedOpts == nil {
		t.Fatal("client factory never invoked")
	}
	if m.Online() {
		t.Fatal("expected offline before session is up")
	}

	// Broker session comes up, then drops.
	capturedOpts.OnConnect(nil)
	if !m.Online() {
		t.Fatal("expected online after connect handler")
	}
	capturedOpts.OnConnectionLost(nil, context.DeadlineExceeded)
	if m.Online() {
		t.Fatal("expected offline after connection lost handler")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Fatalf("expected [true false], got %v", got)
	}
}

func TestMQTTMonitorStopGoesOffline(t *testing.T) {
	var capturedOpts *mqtt.ClientOptions
	client := &mockClient{}

	m := NewMQTTWithClient("localhost", 1883, "user", "pass", testLogger(),
		func(opts *mqtt.ClientOptions) MQTTClient {
			capturedOpts = opts
			return client
		})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	capturedOpts.OnConnect(nil)

	m.Stop()
	if m.Online() {
		t.Fatal("expected offline after stop")
	}
	if client.connected {
		t.Fatal("expected client disconnected")
	}
}
