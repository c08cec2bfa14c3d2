package transfers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pvzzle/walletd/internal/account"
	"github.com/pvzzle/walletd/internal/balances"
	"github.com/pvzzle/walletd/internal/builder"
	"github.com/pvzzle/walletd/internal/chain"
	"github.com/pvzzle/walletd/internal/storage"
	"github.com/pvzzle/walletd/internal/timeout"

	"github.com/google/uuid"
)

const (
	DefaultTransferTimeout    = 10 * time.Second
	DefaultIBCTransferTimeout = 15 * time.Second
	DefaultPortID             = "transfer"

	transferTimeoutMsg    = "transfer timed out after %s seconds"
	ibcTransferTimeoutMsg = "IBC transfer timed out after %s seconds"
)

var ErrNoFaucet = errors.New("faucet address is not configured")

type Config struct {
	ChainID            string
	FaucetAddress      string
	TransferTimeout    time.Duration
	IBCTransferTimeout time.Duration
}

// Submitter runs transfer submissions against the node and records their
// lifecycle in a Store.
type Submitter struct {
	store    *Store
	epochs   chain.EpochQuerier
	sockets  chain.SocketDialer
	builder  builder.Builder
	balances balances.Refresher
	recorder storage.Recorder

	cfg Config

	now   func() time.Time
	newID func() string
}

// NewSubmitter wires a Submitter. recorder may be nil.
func NewSubmitter(
	store *Store,
	epochs chain.EpochQuerier,
	sockets chain.SocketDialer,
	b builder.Builder,
	bal balances.Refresher,
	recorder storage.Recorder,
	cfg Config,
) *Submitter {

	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = DefaultTransferTimeout
	}

	if cfg.IBCTransferTimeout <= 0 {
		cfg.IBCTransferTimeout = DefaultIBCTransferTimeout
	}

	return &Submitter{
		store:    store,
		epochs:   epochs,
		sockets:  sockets,
		builder:  b,
		balances: bal,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *Submitter) Store() *Store { return s.store }

// SubmitTransfer signs, broadcasts and confirms a direct transfer.
func (s *Submitter) SubmitTransfer(ctx context.Context, args TransferArgs) (Transaction, error) {
	id := s.newID()
	s.store.transferPending(id)

	tx, err := s.runTransfer(ctx, args)
	if err != nil {
		log.Printf("[SUBMIT] transfer %s -> %s failed: %v", args.Account.Address, args.Target, err)
		s.store.transferRejected(id, err.Error())
		return Transaction{}, err
	}

	s.store.transferFulfilled(id, tx, args.UseFaucet)
	s.record(ctx, tx)

	log.Printf("[SUBMIT] transfer applied hash=%s height=%d gas=%s", tx.AppliedHash, tx.Height, tx.Gas)
	return tx, nil
}

func (s *Submitter) runTransfer(ctx context.Context, args TransferArgs) (Transaction, error) {
	source := args.Account.Address
	if args.UseFaucet {
		if s.cfg.FaucetAddress == "" {
			return Transaction{}, ErrNoFaucet
		}
		source = s.cfg.FaucetAddress
	}

	epoch, err := s.epochs.QueryEpoch(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("query epoch: %w", err)
	}

	signed, err := s.builder.MakeTransfer(ctx, builder.TransferMsg{
		Source:     source,
		Target:     args.Target,
		Token:      args.Token.Address,
		Amount:     args.Amount,
		Epoch:      epoch,
		Shielded:   args.Shielded,
		Memo:       args.Memo,
		PrivateKey: args.Account.PrivateKey,
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("make transfer: %w", err)
	}

	ev, err := s.broadcast(ctx, signed, s.cfg.TransferTimeout, transferTimeoutMsg)
	if err != nil {
		return Transaction{}, err
	}

	s.refresh(ctx, args.Account)

	kind := TypeNonShielded
	if args.Shielded {
		kind = TypeShielded
	}

	return Transaction{
		Source:      source,
		Target:      args.Target,
		Type:        kind,
		Amount:      args.Amount,
		Height:      ev.Height,
		TokenType:   args.Token.Symbol,
		Gas:         chain.MicroToUnits(ev.GasUsed),
		AppliedHash: ev.Hash,
		Memo:        args.Memo,
		Timestamp:   s.now(),
	}, nil
}

// SubmitIBCTransfer signs, broadcasts and confirms a cross-chain transfer. A
// non-zero result code fails with *RejectionError.
func (s *Submitter) SubmitIBCTransfer(ctx context.Context, args IBCTransferArgs) (Transaction, error) {
	id := s.newID()
	s.store.ibcPending(id)

	tx, err := s.runIBCTransfer(ctx, args)
	if err != nil {
		log.Printf("[SUBMIT] ibc transfer %s -> %s via %s failed: %v", args.Account.Address, args.Target, args.ChannelID, err)
		msg := err.Error()
		var rej *RejectionError
		if errors.As(err, &rej) && rej.Info != "" {
			msg = rej.Info
		}
		s.store.ibcRejected(msg)
		return Transaction{}, err
	}

	s.store.ibcFulfilled(id, tx)
	s.record(ctx, tx)

	log.Printf("[SUBMIT] ibc transfer applied hash=%s height=%d gas=%s", tx.AppliedHash, tx.Height, tx.Gas)
	return tx, nil
}

func (s *Submitter) runIBCTransfer(ctx context.Context, args IBCTransferArgs) (Transaction, error) {
	portID := args.PortID
	if portID == "" {
		portID = DefaultPortID
	}

	epoch, err := s.epochs.QueryEpoch(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("query epoch: %w", err)
	}

	signed, err := s.builder.MakeIBCTransfer(ctx, builder.IBCTransferMsg{
		TransferMsg: builder.TransferMsg{
			Source:     args.Account.Address,
			Target:     args.Target,
			Token:      args.Token.Address,
			Amount:     args.Amount,
			Epoch:      epoch,
			Memo:       args.Memo,
			PrivateKey: args.Account.PrivateKey,
		},
		PortID:    portID,
		ChannelID: args.ChannelID,
		FeeAmount: args.FeeAmount,
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("make ibc transfer: %w", err)
	}

	ev, err := s.broadcast(ctx, signed, s.cfg.IBCTransferTimeout, ibcTransferTimeoutMsg)
	if err != nil {
		return Transaction{}, err
	}
	if !ev.OK() {
		return Transaction{}, &RejectionError{Code: ev.Code, Info: ev.Info}
	}

	s.refresh(ctx, args.Account)

	return Transaction{
		Source:      args.Account.Address,
		Target:      args.Target,
		Type:        TypeIBC,
		Amount:      args.Amount,
		Height:      ev.Height,
		TokenType:   args.Token.Symbol,
		Gas:         chain.MicroToUnits(ev.GasUsed),
		AppliedHash: ev.Hash,
		Memo:        args.Memo,
		Timestamp:   s.now(),
	}, nil
}

// broadcast sends the tx on a fresh socket and waits for its block event within
// d. The socket is disconnected and the timer cancelled before returning.
func (s *Submitter) broadcast(ctx context.Context, signed builder.SignedTx, d time.Duration, template string) (chain.BlockEvent, error) {
	sock, err := s.sockets.Dial(ctx)
	if err != nil {
		return chain.BlockEvent{}, fmt.Errorf("dial socket: %w", err)
	}

	call := timeout.Wrap(ctx, d, template, func(ctx context.Context) (chain.BlockEvent, error) {
		if err := sock.BroadcastTx(ctx, signed.Bytes); err != nil {
			return chain.BlockEvent{}, fmt.Errorf("broadcast tx: %w", err)
		}
		ev, err := sock.SubscribeNewBlock(ctx, signed.Hash)
		if err != nil {
			return chain.BlockEvent{}, fmt.Errorf("subscribe new block: %w", err)
		}
		return ev, nil
	})

	ev, err := call.Wait(ctx)
	sock.Disconnect()
	call.Cancel()

	return ev, err
}

func (s *Submitter) refresh(ctx context.Context, acct account.Account) {
	if s.balances == nil {
		return
	}
	if err := s.balances.Refresh(ctx, acct); err != nil {
		log.Printf("[SUBMIT] balance refresh for %s: %v", acct.Address, err)
	}
}

func (s *Submitter) record(ctx context.Context, tx Transaction) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.UpsertTransfer(ctx, storage.TransferRecord{
		AppliedHash: tx.AppliedHash,
		ChainID:     s.cfg.ChainID,
		Kind:        string(tx.Type),
		Source:      tx.Source,
		Target:      tx.Target,
		Amount:      tx.Amount.String(),
		TokenType:   tx.TokenType,
		Gas:         tx.Gas.String(),
		Height:      tx.Height,
		Memo:        tx.Memo,
		SubmittedAt: tx.Timestamp,
	})
	if err != nil {
		// the transfer is already on chain; history is best effort
		log.Printf("[SUBMIT] db upsert transfer error: %v", err)
	}
}
