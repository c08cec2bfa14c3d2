package tg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pvzzle/walletd/internal/storage"
	"github.com/pvzzle/walletd/internal/transfers"

	"github.com/shopspring/decimal"
)

func FormatHistory(items []storage.HistoryItem) string {
	var sb strings.Builder
	sb.WriteString("🕘 History (last 10)\n\n")

	for _, it := range items {
		sb.WriteString(fmt.Sprintf(
			"• %s (%s, %s) #%d\n  %s %s → %s\n",
			shortenHash(it.AppliedHash), it.Kind, it.EventType, it.Height,
			it.Amount, it.TokenType, shortenHash(it.Target),
		))
	}

	return sb.String()
}

func FormatTransaction(tx transfers.Transaction) string {
	msg := fmt.Sprintf(
		"✅ Transfer applied\n\nType: %s\nFrom: %s\nTo: %s\nAmount: %s %s\nGas: %s\nHash: %s\nHeight: #%d",
		tx.Type,
		tx.Source,
		tx.Target,
		tx.Amount.String(),
		tx.TokenType,
		tx.Gas.String(),
		tx.AppliedHash,
		tx.Height,
	)
	if tx.Memo != "" {
		msg += "\nMemo: " + tx.Memo
	}
	return msg
}

func FormatState(st transfers.State, balances map[string]decimal.Decimal) string {
	var lines []string
	lines = append(lines, "📊 Status")

	switch {
	case st.IsTransferSubmitting && st.IsIbcTransferSubmitting:
		lines = append(lines, "— submitting: transfer, IBC transfer")
	case st.IsTransferSubmitting:
		lines = append(lines, "— submitting: transfer")
	case st.IsIbcTransferSubmitting:
		lines = append(lines, "— submitting: IBC transfer")
	default:
		lines = append(lines, "— submitting: (none)")
	}

	if st.Events != nil {
		lines = append(lines, fmt.Sprintf("— last confirmation: %s (gas %s)", shortenHash(st.Events.AppliedHash), st.Events.Gas.String()))
	}
	if st.TransferError != nil {
		lines = append(lines, "— last error: "+*st.TransferError)
	}
	lines = append(lines, fmt.Sprintf("— transfers this session: %d", len(st.Transactions)))

	if len(balances) > 0 {
		symbols := make([]string, 0, len(balances))
		for s := range balances {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)

		lines = append(lines, "", "💰 Balances")
		for _, s := range symbols {
			lines = append(lines, fmt.Sprintf("— %s: %s", s, balances[s].String()))
		}
	}

	return strings.Join(lines, "\n")
}

func shortenHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:10] + "…" + h[len(h)-4:]
}
