package balances

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pvzzle/walletd/internal/account"
	"github.com/pvzzle/walletd/internal/chain"

	"github.com/shopspring/decimal"
)

type Refresher interface {
	Refresh(ctx context.Context, acct account.Account) error
}

// Tracker caches per-address balances for a fixed token set.
type Tracker struct {
	querier chain.BalanceQuerier
	tokens  map[string]string // symbol -> token address

	mu   sync.RWMutex
	data map[string]map[string]decimal.Decimal
}

func NewTracker(q chain.BalanceQuerier, tokens map[string]string) *Tracker {
	cp := make(map[string]string, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &Tracker{
		querier: q,
		tokens:  cp,
		data:    make(map[string]map[string]decimal.Decimal),
	}
}

// Refresh re-queries every tracked token. Tokens that fail keep their previous
// value; the joined error is returned.
func (t *Tracker) Refresh(ctx context.Context, acct account.Account) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fresh := make(map[string]decimal.Decimal, len(t.tokens))
	var errs []error
	for symbol, token := range t.tokens {
		v, err := t.querier.QueryBalance(cctx, acct.Address, token)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		fresh[symbol] = v
	}

	t.mu.Lock()
	cur := t.data[acct.Address]
	if cur == nil {
		cur = make(map[string]decimal.Decimal, len(fresh))
		t.data[acct.Address] = cur
	}
	for k, v := range fresh {
		cur[k] = v
	}
	t.mu.Unlock()

	return errors.Join(errs...)
}

// Get returns a copy of the cached balances for address.
func (t *Tracker) Get(address string) (map[string]decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cur, ok := t.data[address]
	if !ok {
		return nil, false
	}
	out := make(map[string]decimal.Decimal, len(cur))
	for k, v := range cur {
		out[k] = v
	}
	return out, true
}
