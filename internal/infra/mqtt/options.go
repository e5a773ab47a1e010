package mqtt

import (
	"crypto/tls"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	maxQoS                   = 2
)

// Options configures the broker connection.
type Options struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	TLS               bool
	QoS               byte
	ReconnectInterval time.Duration
	MaxReconnectDelay time.Duration
	// WillTopic receives "offline" from the broker when the connection
	// drops without a clean disconnect. Empty disables the will.
	WillTopic string
}

func buildClientOptions(o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(true)
	// Handlers may block, so each message gets its own goroutine.
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	if o.ReconnectInterval > 0 {
		opts.SetConnectRetryInterval(o.ReconnectInterval)
	}
	if o.MaxReconnectDelay > 0 {
		opts.SetMaxReconnectInterval(o.MaxReconnectDelay)
	}
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if o.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	if o.WillTopic != "" {
		opts.SetWill(o.WillTopic, payloadOffline, 1, true)
	}

	return opts
}
