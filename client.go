package gemini

import (
	"context"
	"log/slog"
)

// Client sends Gemini requests over a Transport.
type Client struct {
	// Transport opens connections. A nil Transport uses a Dialer with the
	// default settings.
	Transport Transport

	Logger *slog.Logger
}

// Do sends req and returns the framed response. The response body streams
// until the server closes the connection or ctx is done; the caller should
// Close the response when it stops reading early.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	logger := c.logger()
	conn, err := c.transport().Dial(ctx, req.URL, req.Certificate)
	if err != nil {
		return nil, err
	}
	uri := req.URL.String()
	if err := conn.Send(uri); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Debug("request sent", "uri", uri)

	res, err := Frame(ctx, conn.Chunks(ctx))
	if err != nil {
		conn.Close()
		return nil, err
	}
	res.conn = conn
	logger.Debug("response framed", "uri", uri, "status", res.StatusCode, "meta", res.Meta)
	return res, nil
}

// Get fetches a resource from a Gemini server with the given URL.
func (c *Client) Get(ctx context.Context, rawurl string) (*Response, error) {
	req, err := NewRequest(rawurl)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

func (c *Client) transport() Transport {
	if c.Transport == nil {
		return &Dialer{Logger: c.Logger}
	}
	return c.Transport
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
