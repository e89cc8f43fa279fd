package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

const defaultDialTimeout = 5 * time.Second

// DialOption configures a Client.
type DialOption func(*Client)

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(d time.Duration) DialOption {
	return func(c *Client) { c.dialTimeout = d }
}

// Client calls a Server over one TCP connection at a time. Calls are
// serialized. After a transport failure the connection is dropped and the
// next call redials.
type Client struct {
	addr        string
	dialTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	enc    *json.Encoder
	dec    *json.Decoder
	nextID int64
}

// reply mirrors Response with the payload left undecoded.
type reply struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  int             `json:"code"`
}

// Dial connects to addr. The first connection is made eagerly so a bad
// address fails here rather than on the first call.
func Dial(addr string, opts ...DialOption) (*Client, error) {
	c := &Client{addr: addr, dialTimeout: defaultDialTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.connect(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.addr, err)
	}
	c.conn = conn
	c.enc = json.NewEncoder(conn)
	c.dec = json.NewDecoder(conn)
	return nil
}

func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Call sends params to method and decodes the reply data into result, which
// may be nil. Server-side failures come back as *RemoteError; anything else
// is a transport error. The ctx deadline bounds the whole round trip.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return err
		}
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.drop()
		return fmt.Errorf("setting deadline: %w", err)
	}

	c.nextID++
	id := strconv.FormatInt(c.nextID, 10)
	if err := c.enc.Encode(Request{Method: method, ID: id, Params: raw}); err != nil {
		c.drop()
		return fmt.Errorf("sending %s: %w", method, err)
	}

	var r reply
	if err := c.dec.Decode(&r); err != nil {
		c.drop()
		return fmt.Errorf("reading %s reply: %w", method, err)
	}
	if r.ID != id {
		c.drop()
		return fmt.Errorf("reply id %q does not match request %q", r.ID, id)
	}
	if r.Error != "" {
		return &RemoteError{Method: method, Code: r.Code, Message: r.Error}
	}
	if result == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, result); err != nil {
		return fmt.Errorf("decoding %s reply: %w", method, err)
	}
	return nil
}

// Close closes the current connection. A closed client redials on the next
// Call.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
