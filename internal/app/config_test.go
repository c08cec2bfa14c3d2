package app

import (
	"strings"
	"testing"
	"time"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("NODE_RPC_URL", "http://127.0.0.1:26657")
	t.Setenv("NODE_WS_URL", "ws://127.0.0.1:26657/websocket")
	t.Setenv("POSTGRES_URL", "postgres://localhost/walletd")
	t.Setenv("WALLET_ADDRESS", "tnam1alice")
	t.Setenv("WALLET_PRIVATE_KEY", testKey)
	t.Setenv("TOKENS", "NAM:tnam1nam,BTC:tnam1btc")
}

func TestParseConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := parseConfig()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.TransferTimeout != 10*time.Second || cfg.IBCTransferTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts: %v %v", cfg.TransferTimeout, cfg.IBCTransferTimeout)
	}
	if cfg.DefaultToken != "NAM" || cfg.Tokens["BTC"] != "tnam1btc" {
		t.Fatalf("unexpected tokens: %v default=%s", cfg.Tokens, cfg.DefaultToken)
	}
}

func TestParseConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TRANSFER_TIMEOUT", "3s")
	t.Setenv("DEFAULT_TOKEN", "BTC")
	t.Setenv("ALLOWED_CHAT_ID", "42")

	cfg, err := parseConfig()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.TransferTimeout != 3*time.Second || cfg.DefaultToken != "BTC" || cfg.AllowedChatID != 42 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	setRequired(t)
	t.Setenv("WALLET_PRIVATE_KEY", "nope")
	if _, err := parseConfig(); err == nil || !strings.Contains(err.Error(), "WALLET_PRIVATE_KEY") {
		t.Fatalf("expected key error, got %v", err)
	}

	setRequired(t)
	t.Setenv("DEFAULT_TOKEN", "ETH")
	if _, err := parseConfig(); err == nil {
		t.Fatalf("expected unknown default token error")
	}
}
