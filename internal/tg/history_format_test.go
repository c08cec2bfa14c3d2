package tg

import (
	"strings"
	"testing"
	"time"

	"github.com/pvzzle/walletd/internal/storage"
	"github.com/pvzzle/walletd/internal/transfers"

	"github.com/shopspring/decimal"
)

func TestFormatHistory(t *testing.T) {
	now := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)

	items := []storage.HistoryItem{
		{
			At:          now,
			EventType:   storage.EventSubmit,
			AppliedHash: strings.Repeat("A", 64),
			Kind:        "IBC",
			Target:      "cosmos1bob",
			Amount:      "5",
			TokenType:   "NAM",
			Height:      123,
		},
	}

	txt := FormatHistory(items)

	if !strings.Contains(txt, "…") {
		t.Fatalf("expected shortened hash: %s", txt)
	}
	if !strings.Contains(txt, "5 NAM") {
		t.Fatalf("expected amount: %s", txt)
	}
	if !strings.Contains(txt, "submit") || !strings.Contains(txt, "IBC") {
		t.Fatalf("expected event and kind: %s", txt)
	}
	if !strings.Contains(txt, "#123") {
		t.Fatalf("expected height: %s", txt)
	}
}

func TestFormatTransaction(t *testing.T) {
	txt := FormatTransaction(transfers.Transaction{
		Type:        transfers.TypeNonShielded,
		Source:      "tnam1alice",
		Target:      "tnam1bob",
		Amount:      decimal.NewFromInt(100),
		TokenType:   "NAM",
		Gas:         decimal.NewFromInt(1),
		AppliedHash: "ABC",
		Height:      42,
	})

	for _, want := range []string{"Non-Shielded", "100 NAM", "Gas: 1", "ABC", "#42"} {
		if !strings.Contains(txt, want) {
			t.Fatalf("expected %q in %s", want, txt)
		}
	}
	if strings.Contains(txt, "Memo") {
		t.Fatalf("expected no memo line: %s", txt)
	}
}

func TestFormatState(t *testing.T) {
	msg := "insufficient funds"
	txt := FormatState(transfers.State{
		IsIbcTransferSubmitting: true,
		TransferError:           &msg,
		Events:                  &transfers.Events{AppliedHash: "ABC", Gas: decimal.NewFromInt(1)},
	}, map[string]decimal.Decimal{"NAM": decimal.NewFromInt(9), "BTC": decimal.Zero})

	for _, want := range []string{"IBC transfer", "insufficient funds", "ABC", "— BTC: 0", "— NAM: 9"} {
		if !strings.Contains(txt, want) {
			t.Fatalf("expected %q in %s", want, txt)
		}
	}
	if strings.Index(txt, "BTC") > strings.Index(txt, "NAM:") {
		t.Fatalf("expected balances sorted: %s", txt)
	}
}
