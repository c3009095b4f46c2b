package grpcapi

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
)

// Client implements endpoints.API over a gRPC connection.
type Client struct {
	conn grpc.ClientConnInterface
	log  logger.Logger
}

var _ endpoints.API = (*Client)(nil)

// NewClient wraps conn. A nil log discards output.
func NewClient(conn grpc.ClientConnInterface, log logger.Logger) *Client {
	return &Client{conn: conn, log: logger.OrNop(log)}
}

// Dial opens a connection to target, in plaintext when plaintext is set and
// over TLS with the system roots otherwise.
func Dial(target string, plaintext bool, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if target == "" {
		return nil, errors.New("grpcapi: target is required")
	}
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if plaintext {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(target, append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("grpcapi: dial %s: %w", target, err)
	}
	return conn, nil
}

// Get calls RecordService.Get with params.
func (c *Client) Get(ctx context.Context, params endpoints.Params) endpoints.Request {
	return c.call(ctx, MethodGet, params)
}

// Update calls RecordService.Update with record.
func (c *Client) Update(ctx context.Context, record map[string]any) endpoints.Request {
	return c.call(ctx, MethodUpdate, record)
}

// Insert calls RecordService.Insert with record.
func (c *Client) Insert(ctx context.Context, record map[string]any) endpoints.Request {
	return c.call(ctx, MethodInsert, record)
}

// Remove calls RecordService.Remove with params.
func (c *Client) Remove(ctx context.Context, params endpoints.Params) endpoints.Request {
	return c.call(ctx, MethodRemove, params)
}

// List calls RecordService.List with the set list parameters.
func (c *Client) List(ctx context.Context, params endpoints.ListParams) endpoints.Request {
	in := map[string]any{}
	if params.Offset != 0 {
		in["offset"] = params.Offset
	}
	if params.Limit != 0 {
		in["limit"] = params.Limit
	}
	if params.Order != "" {
		in["order"] = params.Order
	}
	return c.call(ctx, MethodList, in)
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) endpoints.Request {
	ctx = context.WithoutCancel(ctx)
	return endpoints.RequestFunc(func(callback func(endpoints.Response)) {
		go func() {
			resp := c.invoke(ctx, method, payload)
			if resp.Error != nil {
				c.log.WithContext(ctx).Debug("grpc call failed", "method", method, "error", resp.Error.Error())
			} else {
				c.log.WithContext(ctx).Debug("grpc call", "method", method)
			}
			callback(resp)
		}()
	})
}

func (c *Client) invoke(ctx context.Context, method string, payload map[string]any) endpoints.Response {
	in, err := newStruct(payload)
	if err != nil {
		return endpoints.Failed(endpoints.BadRequest(fmt.Sprintf("encode request: %v", err)))
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return endpoints.Failed(FromStatus(err))
	}
	return endpoints.Succeeded(out.AsMap())
}
