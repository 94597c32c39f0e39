// Package publisher wraps a line-protocol blob into the configured sink's
// HTTP request and reports success/failure. The write URL and static
// headers are built once at startup; each sample gets a fresh POST request
// carrying them.
package publisher

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SinkVariant distinguishes InfluxDB v1 from v2 wire conventions.
type SinkVariant int

const (
	SinkV1 SinkVariant = iota
	SinkV2
)

func (v SinkVariant) String() string {
	switch v {
	case SinkV1:
		return "influxdb_v1"
	case SinkV2:
		return "influxdb_v2"
	default:
		return "unknown"
	}
}

// SinkConfig is the tagged-union sink configuration: V1 carries DB/User/Pass,
// V2 carries Org/Bucket/Token.
type SinkConfig struct {
	Variant SinkVariant
	BaseURL string

	// V1
	DB   string
	User string
	Pass string

	// V2
	Org    string
	Bucket string
	Token  string
}

// Publisher POSTs line-protocol blobs to the sink's write endpoint.
type Publisher struct {
	client  *http.Client
	url     string
	headers http.Header
}

// New builds the sink's write URL and static headers once from cfg.
func New(cfg SinkConfig, timeout time.Duration) (*Publisher, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")

	switch cfg.Variant {
	case SinkV1:
		q := url.Values{}
		q.Set("db", cfg.DB)
		q.Set("precision", "ns")
		if cfg.User != "" {
			q.Set("u", cfg.User)
		}
		if cfg.Pass != "" {
			q.Set("p", cfg.Pass)
		}
		return &Publisher{
			client: &http.Client{Timeout: timeout},
			url:    fmt.Sprintf("%s/write?%s", base, q.Encode()),
		}, nil
	case SinkV2:
		q := url.Values{}
		q.Set("org", cfg.Org)
		q.Set("bucket", cfg.Bucket)
		q.Set("precision", "ns")
		headers := http.Header{}
		headers.Set("Authorization", "Token "+cfg.Token)
		return &Publisher{
			client:  &http.Client{Timeout: timeout},
			url:     fmt.Sprintf("%s/write?%s", base, q.Encode()),
			headers: headers,
		}, nil
	default:
		return nil, fmt.Errorf("unknown sink variant %d", cfg.Variant)
	}
}

// Error wraps a Publisher failure: either a non-2xx response or a
// transport-level error reaching the sink.
type Error struct {
	Status int // 0 if the request never completed
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("publisher: sink returned status %d", e.Status)
	}
	return fmt.Sprintf("publisher: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Publish POSTs blob to the sink. A 2xx status is success; anything else,
// including a transport error, is a *Error.
func (p *Publisher) Publish(blob string) error {
	req, err := http.NewRequest(http.MethodPost, p.url, bytes.NewReader([]byte(blob)))
	if err != nil {
		return &Error{Err: fmt.Errorf("build request: %w", err)}
	}
	for k, v := range p.headers {
		req.Header[k] = v
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode}
	}
	return nil
}
