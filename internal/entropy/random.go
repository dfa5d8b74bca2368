// Package entropy draws run seeds from random.org, falling back to
// crypto/rand when no API key is configured or the API is unavailable.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultEndpoint is the random.org JSON-RPC endpoint.
const DefaultEndpoint = "https://api.random.org/json-rpc/4/invoke"

// base is one past the largest integer requested. generateIntegers accepts
// bounds within [-1e9, 1e9].
const base = 1_000_000_000

// Client fetches seeds from random.org.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// WithEndpoint points the client at another JSON-RPC endpoint.
func (c *Client) WithEndpoint(url string) *Client {
	c.endpoint = url
	return c
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a non-negative seed hi*1e9 + lo built from two integers in
// [0, 1e9) fetched from random.org. Falls back to crypto/rand on any failure, and
// always for a nil client.
func (c *Client) Seed() int64 {
	if !c.Enabled() {
		return CryptoSeed()
	}
	hi, lo, err := c.fetchPair()
	if err != nil {
		slog.Debug("random.org seed failed, using crypto/rand", "error", err)
		return CryptoSeed()
	}
	return hi*base + lo
}

func (c *Client) fetchPair() (int64, int64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      2,
			"min":    0,
			"max":    base - 1,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, 0, fmt.Errorf("marshal: %w", err)
	}

	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("read: %w", err)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, 0, fmt.Errorf("parse: %w", err)
	}
	if result.Error != nil {
		return 0, 0, fmt.Errorf("api: %s", result.Error.Message)
	}
	data := result.Result.Random.Data
	if len(data) < 2 {
		return 0, 0, fmt.Errorf("api: got %d integers, want 2", len(data))
	}
	for _, v := range data[:2] {
		if v < 0 || v >= base {
			return 0, 0, fmt.Errorf("api: integer %d outside [0, %d)", v, base)
		}
	}
	slog.Debug("random.org seed fetched")
	return data[0], data[1], nil
}

// CryptoSeed returns a non-negative seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return time.Now().UnixNano() & (1<<63 - 1)
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}

// SeedFromSource returns a seed from the client if available, or crypto/rand.
func SeedFromSource(c *Client) int64 {
	return c.Seed()
}
