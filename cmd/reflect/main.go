// Command reflect runs one batch reflection pass over past trades and
// prints a summary. Useful for backfilling reflections without the
// full trading loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tkim9/upbit-autotrade/internal/config"
	"github.com/tkim9/upbit-autotrade/internal/gateway/binance"
	"github.com/tkim9/upbit-autotrade/internal/gateway/provider"
	"github.com/tkim9/upbit-autotrade/internal/gateway/upbit"
	"github.com/tkim9/upbit-autotrade/internal/logger"
	"github.com/tkim9/upbit-autotrade/internal/market"
	"github.com/tkim9/upbit-autotrade/internal/reflection"
	"github.com/tkim9/upbit-autotrade/internal/store"
	"github.com/tkim9/upbit-autotrade/internal/store/tracelog"
)

func main() {
	cfgPath := flag.String("config", defaultConfigPath(), "path to the yaml config file")
	coin := flag.String("coin", "", "only reflect on trades for this coin (default: config market.coin)")
	allCoins := flag.Bool("all", false, "reflect on trades for every coin")
	minAgeHours := flag.Int("min-age-hours", 0, "override reflection.min_age_hours")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)

	st, err := store.New(cfg.Reflection.DBPath)
	if err != nil {
		log.Fatalf("opening trade store failed: %v", err)
	}
	defer st.Close()
	traces, err := tracelog.New(cfg.AI.TraceDB)
	if err != nil {
		log.Fatalf("opening trace log failed: %v", err)
	}
	defer traces.Close()

	var source market.Source
	if strings.EqualFold(cfg.Market.Exchange, "binance") {
		source = binance.New(binance.Config{HTTPTimeout: cfg.Upbit.HTTPTimeout()})
	} else {
		source = upbit.New(upbit.Config{
			RESTBaseURL: cfg.Upbit.RESTBaseURL,
			HTTPTimeout: cfg.Upbit.HTTPTimeout(),
		})
	}
	model := &provider.OpenAIChatClient{
		BaseURL:    cfg.AI.APIURL,
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		Timeout:    cfg.AI.Timeout(),
		MaxRetries: cfg.AI.MaxRetries,
	}

	target := cfg.Market.Coin
	if *coin != "" {
		target = *coin
	}
	if *allCoins {
		target = ""
	}
	minAge := cfg.Reflection.MinAgeDuration()
	if *minAgeHours > 0 {
		minAge = time.Duration(*minAgeHours) * time.Hour
	}

	pipeline := reflection.NewPipeline(reflection.Config{
		Coin:         target,
		MinAge:       minAge,
		HorizonHours: cfg.Reflection.HorizonHours,
	}, st, reflection.NewFetcher(source), reflection.NewGenerator(model, traces))

	stats, err := pipeline.Run(ctx)
	if err != nil {
		log.Fatalf("reflection pass failed: %v", err)
	}
	printSummary(stats)
}

func defaultConfigPath() string {
	if p := os.Getenv("AUTOTRADE_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func printSummary(stats reflection.Stats) {
	fmt.Println("Reflection pass complete")
	fmt.Printf("  eligible trades: %d\n", stats.Total)
	fmt.Printf("  processed:       %d\n", stats.Processed)
	fmt.Printf("  errors:          %d\n", stats.Errors)
	if stats.Processed == 0 {
		return
	}
	fmt.Printf("  gains / losses / neutral: %d / %d / %d\n", stats.Gains, stats.Losses, stats.Neutral)
	avg := stats.AvgProfitLoss() * 100
	fmt.Printf("  average profit/loss: %.2f%% (%s)\n", avg, verdict(avg))
}

func verdict(avgPct float64) string {
	switch {
	case avgPct > 0:
		return "profitable"
	case avgPct < 0:
		return "losing"
	default:
		return "break-even"
	}
}
