package tg

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reChannelID = regexp.MustCompile(`^channel-[0-9]+$`)
	rePortID    = regexp.MustCompile(`^[a-zA-Z0-9._+\-#\[\]<>]{2,128}$`)

	shieldedPrefixes = []string{"znam", "zpatest"}

	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidChannel = errors.New("invalid channel id")
)

type TransferInput struct {
	Target    string
	Amount    decimal.Decimal
	Token     string
	Memo      string
	UseFaucet bool
}

type IBCTransferInput struct {
	Target    string
	Amount    decimal.Decimal
	ChannelID string
	PortID    string
	Fee       decimal.Decimal
	Token     string
	Memo      string
}

// ParseAmount parses "1.5" or "0,5" and requires a value > 0.
func ParseAmount(amount string) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	amount = strings.ReplaceAll(amount, ",", ".")

	d, err := decimal.NewFromString(amount)
	if err != nil || d.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func IsShieldedAddress(addr string) bool {
	for _, p := range shieldedPrefixes {
		if strings.HasPrefix(addr, p) {
			return true
		}
	}
	return false
}

// ParseTransferInput parses "<target> <amount> [faucet] [token=SYM] [memo=text]".
func ParseTransferInput(line string) (TransferInput, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return TransferInput{}, fmt.Errorf("%w: expected <target> <amount>", ErrInvalidInput)
	}

	amount, err := ParseAmount(fields[1])
	if err != nil {
		return TransferInput{}, err
	}

	in := TransferInput{Target: fields[0], Amount: amount}
	for _, f := range fields[2:] {
		if strings.EqualFold(f, "faucet") {
			in.UseFaucet = true
			continue
		}
		k, v, ok := strings.Cut(f, "=")
		if !ok || v == "" {
			return TransferInput{}, fmt.Errorf("%w: unexpected %q", ErrInvalidInput, f)
		}
		switch strings.ToLower(k) {
		case "token":
			in.Token = strings.ToUpper(v)
		case "memo":
			in.Memo = v
		default:
			return TransferInput{}, fmt.Errorf("%w: unknown option %q", ErrInvalidInput, k)
		}
	}
	return in, nil
}

// ParseIBCTransferInput parses
// "<target> <amount> <channel-N> [port=transfer] [fee=0] [token=SYM] [memo=text]".
func ParseIBCTransferInput(line string) (IBCTransferInput, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return IBCTransferInput{}, fmt.Errorf("%w: expected <target> <amount> <channel>", ErrInvalidInput)
	}

	amount, err := ParseAmount(fields[1])
	if err != nil {
		return IBCTransferInput{}, err
	}
	if !reChannelID.MatchString(fields[2]) {
		return IBCTransferInput{}, ErrInvalidChannel
	}

	in := IBCTransferInput{Target: fields[0], Amount: amount, ChannelID: fields[2]}
	for _, f := range fields[3:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok || v == "" {
			return IBCTransferInput{}, fmt.Errorf("%w: unexpected %q", ErrInvalidInput, f)
		}
		switch strings.ToLower(k) {
		case "port":
			if !rePortID.MatchString(v) {
				return IBCTransferInput{}, fmt.Errorf("%w: port %q", ErrInvalidInput, v)
			}
			in.PortID = v
		case "fee":
			fee, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
			if err != nil || fee.Sign() < 0 {
				return IBCTransferInput{}, ErrInvalidAmount
			}
			in.Fee = fee
		case "token":
			in.Token = strings.ToUpper(v)
		case "memo":
			in.Memo = v
		default:
			return IBCTransferInput{}, fmt.Errorf("%w: unknown option %q", ErrInvalidInput, k)
		}
	}
	return in, nil
}
