package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	keyGasUsed = "applied.gas_used"
	keyHash    = "applied.hash"
	keyHeight  = "applied.height"
	keyCode    = "applied.code"
	keyInfo    = "applied.info"

	writeWait = 10 * time.Second
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcMessage struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type eventResult struct {
	Query  string              `json:"query"`
	Events map[string][]string `json:"events"`
}

type broadcastResult struct {
	Code uint32 `json:"code"`
	Log  string `json:"log"`
	Hash string `json:"hash"`
}

// WSDialer opens a fresh SocketClient for every call.
type WSDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func (d WSDialer) Dial(ctx context.Context) (Socket, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial ws %s: %w", d.URL, err)
	}
	return NewSocketClient(conn), nil
}

// SocketClient speaks JSON-RPC over one websocket connection. A single reader
// goroutine routes call responses by id and subscription events by query.
type SocketClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan rpcMessage
	subs    map[string]chan eventResult

	closed    chan struct{}
	closeOnce sync.Once
}

func NewSocketClient(conn *websocket.Conn) *SocketClient {
	c := &SocketClient{
		conn:    conn,
		pending: make(map[string]chan rpcMessage),
		subs:    make(map[string]chan eventResult),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *SocketClient) readLoop() {
	defer c.shutdown()

	for {
		var msg rpcMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.closed:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("[socket] read error: %v", err)
				}
			}
			return
		}
		c.route(msg)
	}
}

func (c *SocketClient) route(msg rpcMessage) {
	id := decodeID(msg.ID)

	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if ok {
		ch <- msg
		return
	}

	if msg.Error != nil || len(msg.Result) == 0 {
		return
	}

	var ev eventResult
	if err := json.Unmarshal(msg.Result, &ev); err != nil || ev.Query == "" {
		return
	}

	c.mu.Lock()
	sub, ok := c.subs[ev.Query]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case sub <- ev:
	default:
	}
}

func decodeID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (c *SocketClient) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan rpcMessage, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, fmt.Errorf("%s: %w", method, msg.Error)
		}
		return msg.Result, nil
	case <-c.closed:
		return nil, fmt.Errorf("%s: %w", method, ErrSocketClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *SocketClient) write(req rpcRequest) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return ErrSocketClosed
	default:
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(req)
}

func (c *SocketClient) BroadcastTx(ctx context.Context, tx []byte) error {
	raw, err := c.call(ctx, "broadcast_tx_sync", map[string]string{
		"tx": base64.StdEncoding.EncodeToString(tx),
	})
	if err != nil {
		return err
	}

	var res broadcastResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("broadcast_tx_sync: decode result: %w", err)
	}
	if res.Code != 0 {
		return fmt.Errorf("broadcast_tx_sync: code %d: %s", res.Code, res.Log)
	}
	return nil
}

// SubscribeNewBlock waits for the applied event of the tx with the given hash.
func (c *SocketClient) SubscribeNewBlock(ctx context.Context, hash string) (BlockEvent, error) {
	query := fmt.Sprintf("%s='%s'", keyHash, hash)
	ch := make(chan eventResult, 1)

	c.mu.Lock()
	c.subs[query] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.subs, query)
		c.mu.Unlock()
	}()

	if _, err := c.call(ctx, "subscribe", map[string]string{"query": query}); err != nil {
		return BlockEvent{}, err
	}

	select {
	case ev := <-ch:
		return DecodeBlockEvent(ev.Events)
	case <-c.closed:
		return BlockEvent{}, fmt.Errorf("subscribe %s: %w", hash, ErrSocketClosed)
	case <-ctx.Done():
		return BlockEvent{}, ctx.Err()
	}
}

// Disconnect closes the connection and fails every outstanding call.
func (c *SocketClient) Disconnect() {
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.shutdown()
}

func (c *SocketClient) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// DecodeBlockEvent turns the node's string-array event map into a BlockEvent.
func DecodeBlockEvent(events map[string][]string) (BlockEvent, error) {
	first := func(key string) string {
		if v := events[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	ev := BlockEvent{
		Hash: first(keyHash),
		Code: first(keyCode),
		Info: first(keyInfo),
	}
	if ev.Hash == "" {
		return BlockEvent{}, errors.New("event: missing " + keyHash)
	}
	if ev.Code == "" {
		ev.Code = "0"
	}

	h := first(keyHeight)
	if h == "" {
		return BlockEvent{}, errors.New("event: missing " + keyHeight)
	}
	height, err := strconv.ParseUint(h, 10, 64)
	if err != nil {
		return BlockEvent{}, fmt.Errorf("event: height %q: %w", h, err)
	}
	ev.Height = height

	ev.GasUsed = decimal.Zero
	if g := first(keyGasUsed); g != "" {
		gas, err := decimal.NewFromString(g)
		if err != nil {
			return BlockEvent{}, fmt.Errorf("event: gas used %q: %w", g, err)
		}
		ev.GasUsed = gas
	}

	return ev, nil
}
