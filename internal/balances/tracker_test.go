package balances

import (
	"context"
	"errors"
	"testing"

	"github.com/pvzzle/walletd/internal/account"

	"github.com/shopspring/decimal"
)

type mockQuerier struct {
	values map[string]decimal.Decimal
	fail   map[string]bool
}

func (m *mockQuerier) QueryBalance(ctx context.Context, owner, token string) (decimal.Decimal, error) {
	if m.fail[token] {
		return decimal.Zero, errors.New("node unavailable")
	}
	return m.values[owner+"/"+token], nil
}

func TestTracker_RefreshAndGet(t *testing.T) {
	q := &mockQuerier{values: map[string]decimal.Decimal{
		"addr/tok-nam": decimal.NewFromInt(5),
		"addr/tok-btc": decimal.RequireFromString("0.25"),
	}}
	tr := NewTracker(q, map[string]string{"NAM": "tok-nam", "BTC": "tok-btc"})

	if _, ok := tr.Get("addr"); ok {
		t.Fatal("expected no balances before refresh")
	}

	if err := tr.Refresh(context.Background(), account.Account{Address: "addr"}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, ok := tr.Get("addr")
	if !ok || !got["NAM"].Equal(decimal.NewFromInt(5)) || got["BTC"].String() != "0.25" {
		t.Fatalf("unexpected balances: %v", got)
	}

	got["NAM"] = decimal.Zero
	again, _ := tr.Get("addr")
	if !again["NAM"].Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected cached value unchanged, got %v", again["NAM"])
	}
}

func TestTracker_PartialFailureKeepsPrevious(t *testing.T) {
	q := &mockQuerier{values: map[string]decimal.Decimal{
		"addr/tok-nam": decimal.NewFromInt(5),
		"addr/tok-btc": decimal.NewFromInt(1),
	}}
	tr := NewTracker(q, map[string]string{"NAM": "tok-nam", "BTC": "tok-btc"})
	acct := account.Account{Address: "addr"}

	if err := tr.Refresh(context.Background(), acct); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	q.values["addr/tok-nam"] = decimal.NewFromInt(4)
	q.fail = map[string]bool{"tok-btc": true}

	if err := tr.Refresh(context.Background(), acct); err == nil {
		t.Fatal("expected error for failing token")
	}

	got, _ := tr.Get("addr")
	if !got["NAM"].Equal(decimal.NewFromInt(4)) || !got["BTC"].Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected balances: %v", got)
	}
}
