package chain

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
)

const (
	pathEpoch   = "/shell/epoch"
	pathBalance = "/shell/balance/%s/%s"
)

type abciResponse struct {
	Response struct {
		Code   uint32 `json:"code"`
		Log    string `json:"log"`
		Info   string `json:"info"`
		Value  string `json:"value"`
		Height string `json:"height"`
	} `json:"response"`
}

// RPCClient queries node state over JSON-RPC.
type RPCClient struct {
	c *rpc.Client
}

func DialRPC(ctx context.Context, url string) (*RPCClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &RPCClient{c: c}, nil
}

func (r *RPCClient) Close() { r.c.Close() }

func (r *RPCClient) query(ctx context.Context, path string) ([]byte, error) {
	var res abciResponse
	if err := r.c.CallContext(ctx, &res, "abci_query", path, "", "0", false); err != nil {
		return nil, fmt.Errorf("abci_query %s: %w", path, err)
	}
	if res.Response.Code != 0 {
		msg := res.Response.Log
		if msg == "" {
			msg = res.Response.Info
		}
		return nil, fmt.Errorf("abci_query %s: code %d: %s", path, res.Response.Code, msg)
	}
	raw, err := base64.StdEncoding.DecodeString(res.Response.Value)
	if err != nil {
		return nil, fmt.Errorf("abci_query %s: decode value: %w", path, err)
	}
	return raw, nil
}

func (r *RPCClient) QueryEpoch(ctx context.Context) (uint64, error) {
	raw, err := r.query(ctx, pathEpoch)
	if err != nil {
		return 0, err
	}
	if len(raw) < 8 {
		return 0, ErrNoEpoch
	}
	return binary.LittleEndian.Uint64(raw[:8]), nil
}

// QueryBalance returns the owner's balance of token in display units.
func (r *RPCClient) QueryBalance(ctx context.Context, owner, token string) (decimal.Decimal, error) {
	raw, err := r.query(ctx, fmt.Sprintf(pathBalance, token, owner))
	if err != nil {
		return decimal.Zero, err
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return decimal.Zero, nil
	}
	micro, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", s, err)
	}
	return MicroToUnits(micro), nil
}
