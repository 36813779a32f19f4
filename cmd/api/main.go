package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Chrissou78/omniswap-sub002/internal/config"
	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/domain/services"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
	"github.com/Chrissou78/omniswap-sub002/internal/presentation/handlers"
)

const (
	version = "1.0.0"
)

func main() {
	root := &cobra.Command{
		Use:          "omniswap",
		Short:        "Multi-chain swap quote engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	config.RegisterFlags(root.PersistentFlags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	root.AddCommand(serveCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute one quote and print it as JSON",
		RunE:  runQuote,
	}
	quoteCmd.Flags().Int64("chain-in", entities.ChainEthereum, "source chain id")
	quoteCmd.Flags().Int64("chain-out", 0, "destination chain id, 0 means chain-in")
	quoteCmd.Flags().String("token-in", "", "input token address")
	quoteCmd.Flags().String("token-out", "", "output token address")
	quoteCmd.Flags().String("amount", "", "input amount in token units")
	quoteCmd.Flags().String("route", "", "preferred route (direct, delegated, alternate)")
	root.AddCommand(quoteCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	origins := handlers.NewOriginPolicy(cfg.AllowedOrigins)
	router := handlers.NewRouter(handlers.Handlers{
		Health:       handlers.NewHealthHandler(version, a.chains, a.tokens),
		Registry:     handlers.NewRegistryHandler(a.chains, a.tokens),
		Price:        handlers.NewPriceHandler(a.prices, a.tokens),
		Quote:        handlers.NewQuoteHandler(a.quotes, a.custom, a.auditor, log),
		Stream:       handlers.NewStreamHandler(a.quotes, a.custom, services.OrchestratorConfig{Debounce: cfg.Debounce}, origins, log),
		CustomTokens: handlers.NewCustomTokenHandler(a.custom),
		Audit:        handlers.NewAuditHandler(a.auditor),
		Transactions: handlers.NewTransactionHandler(a.txs),
	}, origins, log)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting omniswap api", zap.String("version", version), zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.close(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown error", zap.Error(err))
	}
	a.close(shutdownCtx)
	log.Info("server stopped")
	return nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	chainIn, _ := cmd.Flags().GetInt64("chain-in")
	chainOut, _ := cmd.Flags().GetInt64("chain-out")
	tokenInAddr, _ := cmd.Flags().GetString("token-in")
	tokenOutAddr, _ := cmd.Flags().GetString("token-out")
	amountStr, _ := cmd.Flags().GetString("amount")
	routeStr, _ := cmd.Flags().GetString("route")

	if tokenInAddr == "" || tokenOutAddr == "" || amountStr == "" {
		return fmt.Errorf("token-in, token-out and amount are required")
	}
	if chainOut == 0 {
		chainOut = chainIn
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}
	route := entities.RouteType(routeStr)
	if route != "" && !route.Valid() {
		return fmt.Errorf("unknown route %q", routeStr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	tokenIn, err := a.custom.LookupToken(ctx, chainIn, tokenInAddr)
	if err != nil {
		return err
	}
	tokenOut, err := a.custom.LookupToken(ctx, chainOut, tokenOutAddr)
	if err != nil {
		return err
	}

	res, err := a.quotes.Quote(ctx, entities.Selection{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amount})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(services.BuildSnapshot(0, res, route, time.Now()))
}
