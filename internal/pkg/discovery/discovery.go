// Package discovery finds Bambu Lab printers on the local network from the
// SSDP announcements they broadcast.
package discovery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/souzu/internal/pkg/config"
	"github.com/anicoll/souzu/internal/pkg/model"
)

const (
	Port             = 2021
	NotificationType = "urn:bambulab-com:device:3dprinter:1"

	maxPacketSize = 4096
)

type Discoverer struct {
	printers *config.PrinterConfig
	addr     string
	timeout  time.Duration
	conn     net.PacketConn
	logger   *zap.Logger
}

type Option func(*Discoverer)

// WithTimeout bounds how long Run listens. Zero listens until cancelled.
func WithTimeout(d time.Duration) Option {
	return func(ds *Discoverer) {
		ds.timeout = d
	}
}

func WithListenAddr(addr string) Option {
	return func(ds *Discoverer) {
		ds.addr = addr
	}
}

// WithPacketConn makes Run read from conn instead of opening its own socket.
// Run closes conn when it returns.
func WithPacketConn(conn net.PacketConn) Option {
	return func(ds *Discoverer) {
		ds.conn = conn
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(ds *Discoverer) {
		ds.logger = logger
	}
}

func New(printers *config.PrinterConfig, opts ...Option) *Discoverer {
	d := &Discoverer{
		printers: printers,
		addr:     fmt.Sprintf("0.0.0.0:%d", Port),
		logger:   zap.L(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run sends every printer it finds to out, at most once per device id, and
// closes out when done. Statically configured printers are sent first.
// Run returns nil when the discovery window ends and ctx.Err() when ctx is
// cancelled first.
func (d *Discoverer) Run(ctx context.Context, out chan<- model.Device) error {
	defer close(out)
	seen := map[string]bool{}

	emit := func(device model.Device) error {
		if seen[device.ID] {
			return nil
		}
		seen[device.ID] = true
		select {
		case out <- device:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, device := range d.staticDevices() {
		if err := emit(device); err != nil {
			return err
		}
	}

	listenCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		listenCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	conn := d.conn
	if conn == nil {
		var lc net.ListenConfig
		var err error
		conn, err = lc.ListenPacket(listenCtx, "udp4", d.addr)
		if err != nil {
			return fmt.Errorf("listening for printer announcements on %s: %w", d.addr, err)
		}
	}
	stop := context.AfterFunc(listenCtx, func() {
		conn.Close()
	})
	defer func() {
		if stop() {
			conn.Close()
		}
	}()

	d.logger.Info("discovery started", zap.String("address", conn.LocalAddr().String()), zap.Duration("timeout", d.timeout))
	buf := make([]byte, maxPacketSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if listenCtx.Err() != nil || errors.Is(err, net.ErrClosed) {
				d.logger.Info("discovery stopped")
				return nil
			}
			return fmt.Errorf("reading printer announcement: %w", err)
		}
		device, ok := ParseAnnouncement(buf[:n])
		if !ok {
			d.logger.Debug("ignoring packet", zap.Stringer("from", from))
			continue
		}
		if seen[device.ID] {
			continue
		}
		d.complete(&device)
		d.logger.Info("found device", zap.String("device_id", device.ID), zap.String("device_name", device.Name), zap.String("address", device.Address))
		if err := emit(device); err != nil {
			return err
		}
	}
}

func (d *Discoverer) staticDevices() []model.Device {
	if d.printers == nil {
		return nil
	}
	ids := lo.Keys(d.printers.Addresses)
	sort.Strings(ids)
	devices := make([]model.Device, 0, len(ids))
	for _, id := range ids {
		device := model.Device{ID: id, Name: id, Address: d.printers.Addresses[id]}
		d.complete(&device)
		devices = append(devices, device)
	}
	return devices
}

// complete fills in what the network does not tell us.
func (d *Discoverer) complete(device *model.Device) {
	if d.printers == nil {
		device.FilenamePrefix = config.DefaultFilenamePrefix(device.ID)
		return
	}
	device.AccessCode, _ = d.printers.AccessCode(device.ID)
	device.FilenamePrefix = d.printers.FilenamePrefix(device.ID)
}

// ParseAnnouncement extracts a printer from an SSDP NOTIFY request or search
// response. ok is false for anything that is not a printer announcement.
func ParseAnnouncement(packet []byte) (model.Device, bool) {
	header, err := readHeader(packet)
	if err != nil {
		return model.Device{}, false
	}
	if header.Get("NT") != NotificationType {
		return model.Device{}, false
	}
	device := model.Device{
		ID:      strings.TrimSpace(header.Get("USN")),
		Name:    strings.TrimSpace(header.Get("DevName.bambu.com")),
		Address: strings.TrimSpace(header.Get("Location")),
	}
	if device.ID == "" || device.Address == "" {
		return model.Device{}, false
	}
	if device.Name == "" {
		device.Name = device.ID
	}
	return device, true
}

func readHeader(packet []byte) (http.Header, error) {
	// some firmware omits the blank line that ends the header block
	if !bytes.HasSuffix(packet, []byte("\r\n\r\n")) {
		packet = append(bytes.TrimRight(packet, "\r\n"), "\r\n\r\n"...)
	}
	r := bufio.NewReader(bytes.NewReader(packet))
	if bytes.HasPrefix(packet, []byte("HTTP/")) {
		resp, err := http.ReadResponse(r, nil)
		if err != nil {
			return nil, err
		}
		return resp.Header, nil
	}
	req, err := http.ReadRequest(r)
	if err != nil {
		return nil, err
	}
	return req.Header, nil
}
