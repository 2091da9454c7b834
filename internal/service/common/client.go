//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	api "github.com/oshokin/uwb-tracker/internal/api/grpc/tracking"
	"github.com/oshokin/uwb-tracker/internal/config"
	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	pb "github.com/oshokin/uwb-tracker/internal/pb/v1"
)

// Client wraps the TrackingService gRPC client.
type Client struct {
	// conn is the underlying gRPC connection to the tracker.
	conn *grpc.ClientConn
	// api is the TrackingService client.
	api pb.TrackingServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a client for the tracker at address.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial tracker: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         pb.NewTrackingServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// ListPositions fetches the latest tag positions.
func (c *Client) ListPositions(ctx context.Context) ([]domain.Position, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListPositions(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	positions, err := api.DecodePositions(resp)
	if err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}

	return positions, nil
}

// ListAnchors fetches anchors with their liveness.
func (c *Client) ListAnchors(ctx context.Context) ([]domain.Anchor, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListAnchors(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("list anchors: %w", err)
	}

	anchors, err := api.DecodeAnchors(resp)
	if err != nil {
		return nil, fmt.Errorf("decode anchors: %w", err)
	}

	return anchors, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
