package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ringstore/internal/storage"
)

// DefaultCallTimeout bounds each RPC issued by a Client.
const DefaultCallTimeout = 5 * time.Second

// Client talks to one storage node.
type Client struct {
	addr    string
	conn    *grpc.ClientConn
	timeout time.Duration
}

// Addr returns the node address the client is bound to.
func (c *Client) Addr() string {
	return c.addr
}

// Fetch returns the content stored under path.
// A missing path yields an error wrapping storage.ErrNotFound.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, methodFetch, wrapperspb.String(path), out); err != nil {
		return nil, c.wrap("fetch "+path, err)
	}
	return out.GetValue(), nil
}

// Store saves content under path.
func (c *Client) Store(ctx context.Context, path string, content []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx = metadata.AppendToOutgoingContext(ctx,
		pathMetadataKey, path,
		requestIDMetadataKey, uuid.NewString(),
	)
	if err := c.conn.Invoke(ctx, methodStore, wrapperspb.Bytes(content), new(emptypb.Empty)); err != nil {
		return c.wrap("store "+path, err)
	}
	return nil
}

// List returns every path stored on the node.
func (c *Client) List(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, methodList, &emptypb.Empty{}, out); err != nil {
		return nil, c.wrap("list", err)
	}
	paths := make([]string, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		paths = append(paths, v.GetStringValue())
	}
	return paths, nil
}

// Delete removes path from the node.
func (c *Client) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.conn.Invoke(ctx, methodDelete, wrapperspb.String(path), new(emptypb.Empty)); err != nil {
		return c.wrap("delete "+path, err)
	}
	return nil
}

// Health returns the remote node's ID.
func (c *Client) Health(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, methodHealth, &emptypb.Empty{}, out); err != nil {
		return "", c.wrap("health", err)
	}
	return out.GetValue(), nil
}

func (c *Client) wrap(op string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s on %s: %w", op, c.addr, storage.ErrNotFound)
	}
	return fmt.Errorf("%s on %s: %w", op, c.addr, err)
}

// ClientManager manages gRPC clients to storage nodes.
type ClientManager struct {
	mu      sync.RWMutex
	clients map[string]*Client
	opts    []grpc.DialOption
	timeout time.Duration
}

// NewClientManager creates a new client manager. Extra dial options are
// appended to the insecure transport credentials.
func NewClientManager(opts ...grpc.DialOption) *ClientManager {
	return &ClientManager{
		clients: make(map[string]*Client),
		opts:    append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...),
		timeout: DefaultCallTimeout,
	}
}

// SetTimeout changes the per-call timeout of clients created afterwards.
func (cm *ClientManager) SetTimeout(d time.Duration) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.timeout = d
}

// Client returns a client for the given node address.
// Creates a new connection if one doesn't exist.
func (cm *ClientManager) Client(addr string) (*Client, error) {
	cm.mu.RLock()
	client, exists := cm.clients[addr]
	cm.mu.RUnlock()

	if exists {
		return client, nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Double-check after acquiring write lock
	if client, exists := cm.clients[addr]; exists {
		return client, nil
	}

	// passthrough hands addr to the dialer untouched.
	conn, err := grpc.NewClient("passthrough:///"+addr, cm.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	client = &Client{addr: addr, conn: conn, timeout: cm.timeout}
	cm.clients[addr] = client
	return client, nil
}

// Forget closes and drops the connection to addr, if any.
func (cm *ClientManager) Forget(addr string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	client, exists := cm.clients[addr]
	if !exists {
		return nil
	}
	delete(cm.clients, addr)
	return client.conn.Close()
}

// Close closes all client connections.
func (cm *ClientManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var firstErr error
	for addr, client := range cm.clients {
		if err := client.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", addr, err)
		}
	}
	cm.clients = make(map[string]*Client)
	return firstErr
}
