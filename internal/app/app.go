package app

import (
	"context"
	"fmt"
	"log"

	"github.com/pvzzle/walletd/internal/account"
	"github.com/pvzzle/walletd/internal/balances"
	"github.com/pvzzle/walletd/internal/builder"
	"github.com/pvzzle/walletd/internal/chain"
	"github.com/pvzzle/walletd/internal/storage/pg"
	"github.com/pvzzle/walletd/internal/tg"
	"github.com/pvzzle/walletd/internal/transfers"

	tgbot "github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	pgPool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("pgxpool new: %w", err)
	}
	defer pgPool.Close()

	repo := pg.New(pgPool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	rpcCl, err := chain.DialRPC(ctx, cfg.NodeRPCURL)
	if err != nil {
		return err
	}
	defer rpcCl.Close()

	epoch, err := rpcCl.QueryEpoch(ctx)
	if err != nil {
		return fmt.Errorf("query epoch: %w", err)
	}

	acct := account.Account{
		Alias:      cfg.WalletAlias,
		Address:    cfg.WalletAddress,
		PrivateKey: cfg.WalletPrivateKey,
	}

	tracker := balances.NewTracker(rpcCl, cfg.Tokens)
	if err := tracker.Refresh(ctx, acct); err != nil {
		log.Printf("[APP] initial balance refresh: %v", err)
	}

	submitter := transfers.NewSubmitter(
		transfers.NewStore(),
		rpcCl,
		chain.WSDialer{URL: cfg.NodeWSURL},
		builder.Init(cfg.ChainID),
		tracker,
		repo,
		transfers.Config{
			ChainID:            cfg.ChainID,
			FaucetAddress:      cfg.FaucetAddress,
			TransferTimeout:    cfg.TransferTimeout,
			IBCTransferTimeout: cfg.IBCTransferTimeout,
		},
	)

	b, err := tgbot.New(cfg.TelegramToken,
		tgbot.WithWorkers(4),
		tgbot.WithNotAsyncHandlers(),
	)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	tgSvc := tg.NewService(b, submitter, tracker, repo, tg.Options{
		Account:       acct,
		Tokens:        cfg.Tokens,
		DefaultToken:  cfg.DefaultToken,
		AllowedChatID: cfg.AllowedChatID,
		NotifyBuffer:  cfg.NotifyBuffer,
	})

	go tgSvc.StartNotifyLoop(ctx)

	log.Printf("started. chain_id=%s epoch=%d account=%s", cfg.ChainID, epoch, acct)
	b.Start(ctx)

	return nil
}
