// Package gsloc resolves WiFi access point MAC addresses to locations using
// the service locationd talks to.
//
// A Client encodes the MACs into the service's framed protobuf request, posts
// it through a transport.Poster and turns the decoded answer into validated
// WifiRecords:
//
//	client, err := gsloc.NewFromConfig(config.Default())
//	if err != nil {
//		return err
//	}
//	records, err := client.Query(ctx, []string{"aa:bb:cc:dd:ee:ff"})
package gsloc

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gsloc/gsloc/config"
	"github.com/gsloc/gsloc/logging"
	"github.com/gsloc/gsloc/transport"
	"github.com/gsloc/gsloc/wloc"
)

// Client queries the location service. It holds no per-query state, one
// request is built and sent per Query call.
type Client struct {
	poster transport.Poster
	noise  int32
	signal int32
	logger zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithNoise overrides the noise value sent with every request.
func WithNoise(noise int32) Option {
	return func(c *Client) { c.noise = noise }
}

// WithSignal overrides the signal value sent with every request.
func WithSignal(signal int32) Option {
	return func(c *Client) { c.signal = signal }
}

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client sending requests through poster.
func New(poster transport.Poster, opts ...Option) *Client {
	c := &Client{
		poster: poster,
		noise:  wloc.DefaultNoise,
		signal: wloc.DefaultSignal,
		logger: logging.Component("gsloc"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client posting over HTTPS as described by cfg.
func NewFromConfig(cfg config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return New(
		transport.NewHTTP(cfg.TransportOptions()),
		WithNoise(cfg.Request.Noise),
		WithSignal(cfg.Request.Signal),
	), nil
}

// Query sends one request for macs and returns the valid records in the order
// the service returned them. Records the service holds no data for are logged
// and left out. An empty response body yields no records and no error.
//
// Encoding, transport and framing failures abort the call: see
// ErrEncodingOverflow, TransportError and ErrMalformedResponse.
func (c *Client) Query(ctx context.Context, macs []string) ([]WifiRecord, error) {
	records, _, err := c.query(ctx, macs)
	return records, err
}

// query also reports how many returned records were discarded
func (c *Client) query(ctx context.Context, macs []string) ([]WifiRecord, int, error) {
	c.logger.Info().Strs("macs", macs).Msg("querying location service")

	req := wloc.NewRequest(macs)
	req.Noise = c.noise
	req.Signal = c.signal
	body, err := req.Encode()
	if err != nil {
		return nil, 0, err
	}

	raw, err := c.poster.Post(ctx, body)
	if err != nil {
		return nil, 0, err
	}
	if len(raw) == 0 {
		c.logger.Error().Msg("empty response received from location service")
		return nil, 0, nil
	}

	wifis, err := wloc.DecodeResponse(raw)
	if err != nil {
		return nil, 0, err
	}
	c.logger.Info().Int("records", len(wifis)).Msg("received response from location service")

	records := make([]WifiRecord, 0, len(wifis))
	discarded := 0
	for _, w := range wifis {
		record, err := FromResponseWifi(w)
		if err != nil {
			c.logger.Warn().Str("mac", w.MAC).Msg(err.Error())
			discarded++
			continue
		}
		records = append(records, record)
	}
	return records, discarded, nil
}

// QueryEach queries the MACs one at a time, in order. A MAC without data is
// logged once and skipped. A failed call is logged and does not stop the
// remaining MACs; the failures are returned joined, next to every record
// gathered. Only context cancellation ends the loop early.
func (c *Client) QueryEach(ctx context.Context, macs []string) ([]WifiRecord, error) {
	var (
		records []WifiRecord
		errs    []error
	)
	for _, mac := range macs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		found, discarded, err := c.query(ctx, []string{mac})
		if err != nil {
			c.logger.Error().Err(err).Str("mac", mac).Msg("query failed")
			errs = append(errs, fmt.Errorf("query %s: %w", mac, err))
			continue
		}
		if len(found) == 0 && discarded == 0 {
			c.logger.Warn().Str("mac", mac).Msg((&NoResultError{MAC: mac}).Error())
		}
		records = append(records, found...)
	}
	return records, errors.Join(errs...)
}
