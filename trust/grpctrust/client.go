package grpctrust

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/vcb/proof"
	"xdao.co/vcb/trust"
)

// Client implements trust.Resolver over the Trust gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client TrustClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ trust.Resolver = (*Client)(nil)

type DialOptions struct {
	// Timeout applies per RPC when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero. Status list
	// credentials can exceed the 4 MiB gRPC default.
	MaxMsgBytes int

	// Extra options appended after the defaults (e.g. transport credentials
	// or a context dialer).
	Extra []grpc.DialOption
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	dialOpts = append(dialOpts, opts.Extra...)

	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewTrustClient(cc), Timeout: opts.Timeout}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) ResolveKey(ctx context.Context, keyID string) (*proof.PublicKey, error) {
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()

	reply, err := c.client.ResolveKey(ctx, wrapperspb.String(keyID))
	if err != nil {
		return nil, mapRPC(err)
	}
	pub, err := proof.ParsePublicKey(reply.GetValue())
	if err != nil {
		return nil, fmt.Errorf("grpctrust: server returned an unusable key for %q: %w", keyID, err)
	}
	return pub, nil
}

func (c *Client) FetchStatusList(ctx context.Context, listID string) ([]byte, error) {
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()

	reply, err := c.client.FetchStatusList(ctx, wrapperspb.String(listID))
	if err != nil {
		err = mapRPC(err)
		if err == trust.ErrNotFound {
			return nil, trust.ErrUnavailable
		}
		return nil, err
	}
	return reply.GetValue(), nil
}

func (c *Client) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func mapRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return trust.ErrNotFound
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", trust.ErrUnavailable, st.Message())
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.Canceled:
		return context.Canceled
	default:
		return err
	}
}
