package advice

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"nutribot/internal/domain"
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected status from advice service")
	ErrMalformedResponse = errors.New("malformed advice response")
)

// maxBodySize caps how much of a reply is read.
const maxBodySize = 1 << 20

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Response *string `json:"response"`
}

// Client talks to the advice service: POST {"query": ...} and expect
// {"response": ...} back.
type Client struct {
	endpoint string
	http     *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func NewClient(endpoint string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Advise(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(queryRequest{Query: query})
	if err != nil {
		return "", errors.Wrap(err, "encode advice request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build advice request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "advice request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", errors.Wrap(err, "read advice response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Wrapf(ErrUnexpectedStatus, "status %d", resp.StatusCode)
	}

	var apiResp queryResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", errors.Wrapf(ErrMalformedResponse, "decode: %v", err)
	}
	if apiResp.Response == nil {
		return "", errors.Wrap(ErrMalformedResponse, "missing response field")
	}

	return *apiResp.Response, nil
}

var _ domain.Advisor = (*Client)(nil)
