package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Balance is one currency line of the account, as returned by
// GET /v1/accounts.
type Balance struct {
	Currency    string
	Balance     float64
	Locked      float64
	AvgBuyPrice float64
}

type accountPayload struct {
	Currency    string `json:"currency"`
	Balance     string `json:"balance"`
	Locked      string `json:"locked"`
	AvgBuyPrice string `json:"avg_buy_price"`
}

// Accounts returns all non-zero balances for the configured API keys.
func (s *Source) Accounts(ctx context.Context) ([]Balance, error) {
	var payload []accountPayload
	if err := s.signedCall(ctx, http.MethodGet, "/v1/accounts", nil, &payload); err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(payload))
	for _, p := range payload {
		out = append(out, Balance{
			Currency:    strings.ToUpper(strings.TrimSpace(p.Currency)),
			Balance:     parseDecimalString(p.Balance),
			Locked:      parseDecimalString(p.Locked),
			AvgBuyPrice: parseDecimalString(p.AvgBuyPrice),
		})
	}
	return out, nil
}

// BalanceOf picks one currency out of the account listing; found is
// false when the account holds none of it.
func (s *Source) BalanceOf(ctx context.Context, currency string) (Balance, bool, error) {
	balances, err := s.Accounts(ctx)
	if err != nil {
		return Balance{}, false, err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	for _, b := range balances {
		if b.Currency == currency {
			return b, true, nil
		}
	}
	return Balance{}, false, nil
}

// OrderResult is the acknowledgement Upbit returns for a placed order.
type OrderResult struct {
	UUID   string `json:"uuid"`
	Side   string `json:"side"`
	Market string `json:"market"`
	State  string `json:"state"`
}

// BuyMarketOrder spends krwAmount on the coin's KRW market
// (ord_type=price: amount-denominated market buy).
func (s *Source) BuyMarketOrder(ctx context.Context, coin string, krwAmount float64) (OrderResult, error) {
	params := url.Values{}
	params.Set("market", MarketCode(coin))
	params.Set("side", "bid")
	params.Set("price", strconv.FormatFloat(krwAmount, 'f', -1, 64))
	params.Set("ord_type", "price")
	var out OrderResult
	err := s.signedCall(ctx, http.MethodPost, "/v1/orders", params, &out)
	return out, err
}

// SellMarketOrder sells volume units of the coin at market
// (ord_type=market: volume-denominated market sell).
func (s *Source) SellMarketOrder(ctx context.Context, coin string, volume float64) (OrderResult, error) {
	params := url.Values{}
	params.Set("market", MarketCode(coin))
	params.Set("side", "ask")
	params.Set("volume", strconv.FormatFloat(volume, 'f', -1, 64))
	params.Set("ord_type", "market")
	var out OrderResult
	err := s.signedCall(ctx, http.MethodPost, "/v1/orders", params, &out)
	return out, err
}

func (s *Source) signedCall(ctx context.Context, method, path string, params url.Values, dest any) error {
	rawQuery := ""
	if len(params) > 0 {
		rawQuery = params.Encode()
	}
	token, err := authToken(s.cfg.AccessKey, s.cfg.SecretKey, rawQuery)
	if err != nil {
		return err
	}
	endpoint := s.cfg.RESTBaseURL + path
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", token)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upbit: %s %s failed: status=%s body=%s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Upbit encodes numeric account fields as strings.
func parseDecimalString(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
