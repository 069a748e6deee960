package app

import (
	"context"
	"sync"

	"github.com/tkim9/upbit-autotrade/internal/decision"
	"github.com/tkim9/upbit-autotrade/internal/gateway/upbit"
	"github.com/tkim9/upbit-autotrade/internal/market"
)

// upbitPortfolio reads the live account state from Upbit.
type upbitPortfolio struct {
	src  *upbit.Source
	coin string
}

func (p *upbitPortfolio) Snapshot(ctx context.Context, coin string) (decision.PortfolioSnapshot, error) {
	price, err := p.src.CurrentPrice(ctx, coin)
	if err != nil {
		return decision.PortfolioSnapshot{}, err
	}
	balances, err := p.src.Accounts(ctx)
	if err != nil {
		return decision.PortfolioSnapshot{}, err
	}
	snap := decision.PortfolioSnapshot{CurrentPrice: price}
	for _, b := range balances {
		switch b.Currency {
		case "KRW":
			snap.KRWBalance = b.Balance
		case coin:
			snap.CoinBalance = b.Balance
			snap.AvgBuyPrice = b.AvgBuyPrice
		}
	}
	return snap, nil
}

// paperPortfolio simulates an account for dry runs and for gateways
// without private API access. Only the price is live; simulated fills
// keep the balances moving so consecutive cycles stay plausible.
type paperPortfolio struct {
	ticker market.Ticker

	mu   sync.Mutex
	krw  float64
	coin float64
	avg  float64
}

func newPaperPortfolio(ticker market.Ticker, startKRW float64) *paperPortfolio {
	if startKRW <= 0 {
		startKRW = 1_000_000
	}
	return &paperPortfolio{ticker: ticker, krw: startKRW}
}

func (p *paperPortfolio) Snapshot(ctx context.Context, coin string) (decision.PortfolioSnapshot, error) {
	price, err := p.ticker.CurrentPrice(ctx, coin)
	if err != nil {
		return decision.PortfolioSnapshot{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return decision.PortfolioSnapshot{
		KRWBalance:   p.krw,
		CoinBalance:  p.coin,
		AvgBuyPrice:  p.avg,
		CurrentPrice: price,
	}, nil
}

// applyFill mirrors an executed decision into the simulated balances.
// amount is KRW spent for a buy and coin volume for a sell.
func (p *paperPortfolio) applyFill(action string, amount, price float64) {
	if amount <= 0 || price <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch action {
	case "buy":
		qty := amount / price
		total := p.coin + qty
		if total > 0 {
			p.avg = (p.avg*p.coin + price*qty) / total
		}
		p.coin = total
		p.krw -= amount
	case "sell":
		p.coin -= amount
		if p.coin < 0 {
			p.coin = 0
		}
		p.krw += amount * price
	}
}
