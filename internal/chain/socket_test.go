package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	broadcastCode uint32
	events        map[string][]string
	silent        bool
}

func (n *fakeNode) serve(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req struct {
				ID     string            `json:"id"`
				Method string            `json:"method"`
				Params map[string]string `json:"params"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}

			switch req.Method {
			case "broadcast_tx_sync":
				_ = conn.WriteJSON(map[string]any{
					"jsonrpc": "2.0", "id": req.ID,
					"result": map[string]any{"code": n.broadcastCode, "log": "rejected by mempool", "hash": "X"},
				})
			case "subscribe":
				_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{}})
				if n.silent {
					continue
				}
				_ = conn.WriteJSON(map[string]any{
					"jsonrpc": "2.0", "id": req.ID + "#event",
					"result": map[string]any{"query": req.Params["query"], "events": n.events},
				})
			default:
				_ = conn.WriteJSON(map[string]any{
					"jsonrpc": "2.0", "id": req.ID,
					"error": map[string]any{"code": -32601, "message": "method not found"},
				})
			}
		}
	}))
}

func dialTest(t *testing.T, srv *httptest.Server) Socket {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	s, err := WSDialer{URL: url}.Dial(context.Background())
	require.NoError(t, err)
	return s
}

func TestSocketClient_BroadcastAndSubscribe(t *testing.T) {
	node := &fakeNode{events: map[string][]string{
		keyGasUsed: {"1000"},
		keyHash:    {"ABC"},
		keyHeight:  {"42"},
		keyCode:    {"0"},
	}}
	srv := node.serve(t)
	defer srv.Close()

	s := dialTest(t, srv)
	defer s.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.BroadcastTx(ctx, []byte("signed")))

	ev, err := s.SubscribeNewBlock(ctx, "ABC")
	require.NoError(t, err)
	require.Equal(t, "ABC", ev.Hash)
	require.Equal(t, uint64(42), ev.Height)
	require.True(t, ev.GasUsed.Equal(decimal.NewFromInt(1000)))
	require.True(t, ev.OK())
}

func TestSocketClient_BroadcastRejected(t *testing.T) {
	node := &fakeNode{broadcastCode: 3}
	srv := node.serve(t)
	defer srv.Close()

	s := dialTest(t, srv)
	defer s.Disconnect()

	err := s.BroadcastTx(context.Background(), []byte("signed"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected by mempool")
}

func TestSocketClient_DisconnectUnblocksSubscribe(t *testing.T) {
	node := &fakeNode{silent: true}
	srv := node.serve(t)
	defer srv.Close()

	s := dialTest(t, srv)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.SubscribeNewBlock(context.Background(), "ABC")
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	s.Disconnect()
	s.Disconnect()

	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, ErrSocketClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return after disconnect")
	}
}

func TestDecodeBlockEvent(t *testing.T) {
	ev, err := DecodeBlockEvent(map[string][]string{
		keyHash:   {"H"},
		keyHeight: {"7"},
		keyCode:   {"1"},
		keyInfo:   {"insufficient funds"},
	})
	require.NoError(t, err)
	require.False(t, ev.OK())
	require.Equal(t, "insufficient funds", ev.Info)
	require.True(t, ev.GasUsed.IsZero())

	ev, err = DecodeBlockEvent(map[string][]string{keyHash: {"H"}, keyHeight: {"1"}})
	require.NoError(t, err)
	require.Equal(t, "0", ev.Code)

	_, err = DecodeBlockEvent(map[string][]string{keyHeight: {"1"}})
	require.Error(t, err)

	_, err = DecodeBlockEvent(map[string][]string{keyHash: {"H"}, keyHeight: {"x"}})
	require.Error(t, err)
}

func TestMicroToUnits(t *testing.T) {
	got := MicroToUnits(decimal.NewFromInt(1000))
	require.True(t, got.Equal(decimal.NewFromInt(1)), "got %s", got)

	got = MicroToUnits(decimal.NewFromInt(1500))
	require.Equal(t, "1.5", got.String())
}

func TestRPCMessageID(t *testing.T) {
	require.Equal(t, "5", decodeID(json.RawMessage(`"5"`)))
	require.Equal(t, "5", decodeID(json.RawMessage(`5`)))
}
