package netmon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient is the subset of the paho client the monitor uses. The
// indirection lets tests substitute a fake client.
type MQTTClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// defaultMQTTClient wraps the real paho client.
type defaultMQTTClient struct {
	client mqtt.Client
}

func (d *defaultMQTTClient) Connect() mqtt.Token     { return d.client.Connect() }
func (d *defaultMQTTClient) Disconnect(quiesce uint) { d.client.Disconnect(quiesce) }
func (d *defaultMQTTClient) IsConnected() bool       { return d.client.IsConnected() }

// MQTTMonitor derives connectivity from the broker session: paho's
// OnConnect and ConnectionLost handlers map directly onto online/offline
// transitions, and auto-reconnect keeps probing while the device is out of
// coverage.
type MQTTMonitor struct {
	notifier
	broker        string
	port          int
	clientID      string
	username      string
	password      string
	logger        *slog.Logger
	client        MQTTClient
	clientFactory func(opts *mqtt.ClientOptions) MQTTClient
}

// NewMQTT creates a broker-backed connectivity monitor.
func NewMQTT(broker string, port int, username, password string, logger *slog.Logger) *MQTTMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTMonitor{
		notifier: newNotifier(false),
		broker:   broker,
		port:     port,
		clientID: fmt.Sprintf("outclaw-netmon-%d", time.Now().Unix()),
		username: username,
		password: password,
		logger:   logger.With("component", "netmon"),
		clientFactory: func(opts *mqtt.ClientOptions) MQTTClient {
			return &defaultMQTTClient{client: mqtt.NewClient(opts)}
		},
	}
}

// NewMQTTWithClient creates a monitor with a custom client factory (for testing).
func NewMQTTWithClient(broker string, port int, username, password string, logger *slog.Logger, factory func(*mqtt.ClientOptions) MQTTClient) *MQTTMonitor {
	m := NewMQTT(broker, port, username, password, logger)
	m.clientFactory = factory
	return m
}

// Start connects to the broker. The initial connect may fail while the
// device is offline; auto-reconnect takes over and the monitor simply stays
// in the offline state until the session comes up.
func (m *MQTTMonitor) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", m.broker, m.port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(m.clientID)

	if m.username != "" {
		opts.SetUsername(m.username)
		opts.SetPassword(m.password)
	}

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectRetry(true)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		m.logger.Info("broker session up, device online")
		m.setOnline(true)
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		m.logger.Warn("broker session lost, device offline", "error", err)
		m.setOnline(false)
	})

	m.client = m.clientFactory(opts)

	m.logger.Info("connecting to broker", "broker", brokerURL)
	token := m.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		m.logger.Warn("initial broker connect still pending, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		m.logger.Warn("initial broker connect failed, retrying in background", "error", err)
	}
	return nil
}

// Stop tears down the broker session.
func (m *MQTTMonitor) Stop() {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	m.setOnline(false)
}
