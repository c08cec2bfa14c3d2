package chain

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func abciServer(t *testing.T, values map[string][]byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params []any           `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}

		path, _ := req.Params[0].(string)
		resp := map[string]any{"code": 0, "value": ""}
		if v, ok := values[path]; ok {
			resp["value"] = base64.StdEncoding.EncodeToString(v)
		} else {
			resp["code"] = 1
			resp["log"] = "unknown path"
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"response": resp},
		})
	}))
}

func TestRPCClient_QueryEpoch(t *testing.T) {
	epoch := make([]byte, 8)
	binary.LittleEndian.PutUint64(epoch, 17)

	srv := abciServer(t, map[string][]byte{pathEpoch: epoch})
	defer srv.Close()

	c, err := DialRPC(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.QueryEpoch(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(17), got)
}

func TestRPCClient_QueryBalance(t *testing.T) {
	srv := abciServer(t, map[string][]byte{
		"/shell/balance/tnam1tok/tnam1owner": []byte("2500"),
	})
	defer srv.Close()

	c, err := DialRPC(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.QueryBalance(context.Background(), "tnam1owner", "tnam1tok")
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("2.5")), "got %s", got)

	_, err = c.QueryBalance(context.Background(), "nobody", "tnam1tok")
	require.Error(t, err)
}
