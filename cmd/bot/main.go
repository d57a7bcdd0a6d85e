// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpbot/internal/bot"
	"github.com/rovshanmuradov/pumpbot/internal/config"
	"github.com/rovshanmuradov/pumpbot/internal/logger"
	"github.com/rovshanmuradov/pumpbot/internal/monitor"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	mintFlag := flag.String("mint", "", "token mint address")
	curveFlag := flag.String("curve", "", "bonding curve address (derived from mint if empty)")
	symbol := flag.String("symbol", "", "token symbol for logs")
	solAmount := flag.Float64("sol", 0.01, "SOL amount to spend")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.DebugLogging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	token, err := parseToken(*mintFlag, *curveFlag, *symbol)
	if err != nil {
		log.Fatal("Invalid token arguments", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting position engine",
		zap.String("mint", token.Mint.String()),
		zap.Float64("sol", *solAmount),
		zap.String("rpc", cfg.RPCURL))

	runner := bot.NewRunner(cfg, log)
	if err := runner.Run(ctx, token, *solAmount); err != nil {
		log.Error("Bot execution error", zap.Error(err))
		os.Exit(1)
	}
}

func parseToken(mint, curve, symbol string) (monitor.TokenInfo, error) {
	if mint == "" {
		return monitor.TokenInfo{}, fmt.Errorf("-mint is required")
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return monitor.TokenInfo{}, fmt.Errorf("invalid mint: %w", err)
	}
	token := monitor.TokenInfo{Mint: mintKey, Symbol: symbol}
	if curve != "" {
		curveKey, err := solana.PublicKeyFromBase58(curve)
		if err != nil {
			return monitor.TokenInfo{}, fmt.Errorf("invalid bonding curve: %w", err)
		}
		token.BondingCurve = curveKey
	}
	return token, nil
}
