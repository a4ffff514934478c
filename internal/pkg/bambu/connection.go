// Package bambu keeps a live MQTT subscription to a Bambu Lab printer and
// rebuilds its full status from the partial reports it publishes.
package bambu

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/anicoll/souzu/internal/pkg/config"
	"github.com/anicoll/souzu/internal/pkg/hub"
	"github.com/anicoll/souzu/internal/pkg/merge"
	"github.com/anicoll/souzu/internal/pkg/model"
)

const (
	Port     = 8883
	Username = "bblp"

	DefaultReconnectDelay = 30 * time.Second

	connectTimeout = 10 * time.Second
	keepAlive      = 30 * time.Second
)

var ErrNoAccessCode = errors.New("no access code configured for printer")

// ReportTopic is the topic a printer publishes its status reports on.
func ReportTopic(deviceID string) string {
	return fmt.Sprintf("device/%s/report", deviceID)
}

type cacheStore interface {
	Use(device model.Device, fn func(*model.Cache) error) error
}

// ClientFactory builds an MQTT client from options. It exists so tests can
// replace the network.
type ClientFactory func(opts *paho_mqtt.ClientOptions) paho_mqtt.Client

// Connection owns the upstream subscription for one printer. Snapshots it
// publishes are shared between subscribers and must not be modified.
type Connection struct {
	device         model.Device
	accessCode     string
	roots          *x509.CertPool
	cache          cacheStore
	hub            *hub.Hub[*model.StatusReport]
	newClient      ClientFactory
	reconnectDelay time.Duration
	clock          clock.Clock
	logger         *zap.Logger
	latest         atomic.Pointer[model.StatusReport]
}

type Option func(*Connection)

func WithClientFactory(f ClientFactory) Option {
	return func(c *Connection) {
		c.newClient = f
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(c *Connection) {
		c.reconnectDelay = d
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Connection) {
		c.clock = clk
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) {
		c.logger = logger
	}
}

// New prepares a connection to device. The access code comes from the
// device itself or, failing that, from cfg.
func New(device model.Device, cfg *config.PrinterConfig, roots *x509.CertPool, store cacheStore, opts ...Option) (*Connection, error) {
	accessCode := device.AccessCode
	if accessCode == "" && cfg != nil {
		accessCode, _ = cfg.AccessCode(device.ID)
	}
	if accessCode == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAccessCode, device)
	}

	c := &Connection{
		device:         device,
		accessCode:     accessCode,
		roots:          roots,
		cache:          store,
		newClient:      paho_mqtt.NewClient,
		reconnectDelay: DefaultReconnectDelay,
		clock:          clock.New(),
		logger:         zap.L(),
	}
	if cfg != nil && cfg.ReconnectDelay > 0 {
		c.reconnectDelay = cfg.ReconnectDelay
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(zap.String("device_id", device.ID), zap.String("device_name", device.Name))
	c.hub = hub.New(hub.WithLogger[*model.StatusReport](c.logger))
	return c, nil
}

func (c *Connection) Device() model.Device {
	return c.device
}

// Subscribe registers a new consumer of reconstructed snapshots. Close the
// subscription when done.
func (c *Connection) Subscribe() *hub.Subscription[*model.StatusReport] {
	return c.hub.Subscribe()
}

// Latest returns the most recent snapshot, or nil before the first message.
func (c *Connection) Latest() *model.StatusReport {
	return c.latest.Load()
}

// Run keeps the printer subscription alive until ctx is done, reconnecting
// after a fixed delay whenever the transport fails. The cache is loaded
// before the first connect and saved on the way out. Run only returns on
// cancellation or a cache error.
func (c *Connection) Run(ctx context.Context) error {
	return c.cache.Use(c.device, func(cached *model.Cache) error {
		if cached.Print != nil {
			c.latest.Store(cached.Print)
		}
		for {
			err := c.session(ctx, cached)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("mqtt connection failed", zap.Error(err), zap.Duration("retry_in", c.reconnectDelay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(c.reconnectDelay):
			}
		}
	})
}

func (c *Connection) clientOptions(lost chan<- error) *paho_mqtt.ClientOptions {
	return paho_mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("ssl://%s:%d", c.device.Address, Port)).
		SetClientID(fmt.Sprintf("souzu-%s-%d", c.device.ID, c.clock.Now().UnixNano())).
		SetUsername(Username).
		SetPassword(c.accessCode).
		SetTLSConfig(newTLSConfig(c.device.ID, c.roots)).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetConnectionLostHandler(func(_ paho_mqtt.Client, err error) {
			select {
			case lost <- err:
			default:
			}
		})
}

// session runs one connect-subscribe-receive cycle and returns why it ended.
func (c *Connection) session(ctx context.Context, cached *model.Cache) error {
	lost := make(chan error, 1)
	messages := make(chan []byte)
	done := make(chan struct{})

	client := c.newClient(c.clientOptions(lost))
	c.logger.Debug("connecting", zap.String("address", c.device.Address))
	if err := wait(ctx, client.Connect()); err != nil {
		// paho may still be dialing; stop it so no session outlives us
		client.Disconnect(0)
		return fmt.Errorf("connecting to %s: %w", c.device.Address, err)
	}
	defer func() {
		// unblock the message handler before paho waits for it
		close(done)
		client.Disconnect(0)
	}()

	topic := ReportTopic(c.device.ID)
	handler := func(_ paho_mqtt.Client, msg paho_mqtt.Message) {
		select {
		case messages <- msg.Payload():
		case <-done:
		}
	}
	if err := wait(ctx, client.Subscribe(topic, 0, handler)); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	c.logger.Info("subscribed to printer", zap.String("topic", topic))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-lost:
			return fmt.Errorf("connection lost: %w", err)
		case payload := <-messages:
			c.handleMessage(cached, payload)
		}
	}
}

func (c *Connection) handleMessage(cached *model.Cache, payload []byte) {
	patch, err := merge.ParsePatch(payload)
	if err != nil {
		c.logger.Warn("dropping unparseable message", zap.ByteString("payload", payload), zap.Error(err))
		return
	}
	report, err := merge.Merge(cached.Print, patch)
	if err != nil {
		c.logger.Warn("dropping message that does not match the report schema", zap.ByteString("payload", payload), zap.Error(err))
		return
	}

	now := c.clock.Now().UTC()
	cached.Print = report
	cached.LastUpdate = &now
	if patch.IsFull() {
		full := now
		cached.LastFullUpdate = &full
	}

	c.latest.Store(report)
	c.hub.Publish(report)
}

// wait blocks until token completes or ctx is done.
func wait(ctx context.Context, token paho_mqtt.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
