package app

import (
	"fmt"
	"time"

	"github.com/pvzzle/walletd/internal/builder"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string `env:"TELEGRAM_TOKEN,required"`
	NodeRPCURL    string `env:"NODE_RPC_URL,required"`
	NodeWSURL     string `env:"NODE_WS_URL,required"`
	PostgresURL   string `env:"POSTGRES_URL,required"`

	WalletAlias      string `env:"WALLET_ALIAS"`
	WalletAddress    string `env:"WALLET_ADDRESS,required"`
	WalletPrivateKey string `env:"WALLET_PRIVATE_KEY,required"`

	ChainID       string            `env:"CHAIN_ID"`
	FaucetAddress string            `env:"FAUCET_ADDRESS"`
	Tokens        map[string]string `env:"TOKENS"`
	DefaultToken  string            `env:"DEFAULT_TOKEN"`

	TransferTimeout    time.Duration `env:"TRANSFER_TIMEOUT"`
	IBCTransferTimeout time.Duration `env:"IBC_TRANSFER_TIMEOUT"`

	AllowedChatID int64 `env:"ALLOWED_CHAT_ID"`
	NotifyBuffer  int   `env:"NOTIFY_BUFFER"`
}

func LoadConfig() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Warning: .env file not found, relying on environment variables")
	}

	return parseConfig()
}

func parseConfig() (Config, error) {
	config := Config{
		ChainID:            "local",
		DefaultToken:       "NAM",
		TransferTimeout:    10 * time.Second,
		IBCTransferTimeout: 15 * time.Second,
		NotifyBuffer:       256,
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}

	if err := builder.ValidateKey(config.WalletPrivateKey); err != nil {
		return Config{}, fmt.Errorf("WALLET_PRIVATE_KEY: %w", err)
	}
	if _, ok := config.Tokens[config.DefaultToken]; !ok {
		return Config{}, fmt.Errorf("DEFAULT_TOKEN %q is not listed in TOKENS", config.DefaultToken)
	}

	return config, nil
}
