package entropy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSeed_NilClient verifies a nil client falls back to crypto/rand.
func TestSeed_NilClient(t *testing.T) {
	var c *Client
	assert.False(t, c.Enabled())
	assert.Nil(t, NewClient(""))

	seen := map[int64]bool{}
	for i := 0; i < 8; i++ {
		s := SeedFromSource(c)
		assert.GreaterOrEqual(t, s, int64(0))
		seen[s] = true
	}
	assert.Greater(t, len(seen), 1)
}

// randomOrgServer mimics generateIntegers, rejecting bounds outside
// [-1e9, 1e9] the way the live API does.
func randomOrgServer(t *testing.T, data string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params struct {
				APIKey string  `json:"apiKey"`
				N      int     `json:"n"`
				Min    float64 `json:"min"`
				Max    float64 `json:"max"`
			} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "generateIntegers", req.Method)
		assert.Equal(t, "key", req.Params.APIKey)
		if req.Params.Min < -1e9 || req.Params.Max > 1e9 {
			w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":202,"message":"Parameter 'max' is out of range"},"id":1}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","result":{"random":{"data":` + data + `}},"id":1}`))
	}))
}

// TestSeed_RandomOrg verifies the request stays within the API's bounds and
// the seed is assembled from both integers.
func TestSeed_RandomOrg(t *testing.T) {
	srv := randomOrgServer(t, "[3,5]")
	defer srv.Close()

	c := NewClient("key").WithEndpoint(srv.URL)
	hi, lo, err := c.fetchPair()
	require.NoError(t, err)
	assert.Equal(t, int64(3), hi)
	assert.Equal(t, int64(5), lo)
	assert.Equal(t, int64(3_000_000_005), c.Seed())
}

// TestSeed_OutOfRangeData verifies integers outside [0, 1e9) are rejected.
func TestSeed_OutOfRangeData(t *testing.T) {
	srv := randomOrgServer(t, "[1000000000,5]")
	defer srv.Close()

	_, _, err := NewClient("key").WithEndpoint(srv.URL).fetchPair()
	assert.Error(t, err)
}

// TestSeed_APIError verifies API errors fall back to crypto/rand.
func TestSeed_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"message":"quota exceeded"},"id":1}`))
	}))
	defer srv.Close()

	c := NewClient("key").WithEndpoint(srv.URL)
	assert.GreaterOrEqual(t, c.Seed(), int64(0))
}
