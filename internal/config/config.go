package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultLogLevel        = "info"
	defaultHTTPAddr        = ":8090"
	defaultExchange        = "upbit"
	defaultCoin            = "ADA"
	defaultUpbitREST       = "https://api.upbit.com"
	defaultAIAPIURL        = "https://api.openai.com/v1"
	defaultAIModel         = "gpt-4o-2024-08-06"
	defaultNewsTimePeriod  = "qdr:d"
	defaultNewsArticles    = 10
	defaultStrategyPath    = "strategy/strategy.md"
	defaultFeeRate         = 0.0005
	defaultMinOrderKRW     = 5000
	defaultDBPath          = "database/trade_log.db"
	defaultTraceDB         = "database/llm_trace.db"
	defaultMinAgeHours     = 24
	defaultHorizonHours    = 24
)

// Load reads a yaml config file and fills in defaults. Secrets left
// empty in the file fall back to the environment variables the
// original deployment used.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultHTTPAddr
	}
	if c.Market.Exchange == "" {
		c.Market.Exchange = defaultExchange
	}
	if c.Market.Coin == "" {
		c.Market.Coin = defaultCoin
	}
	if c.Upbit.RESTBaseURL == "" {
		c.Upbit.RESTBaseURL = defaultUpbitREST
	}
	if c.Upbit.AccessKey == "" {
		c.Upbit.AccessKey = os.Getenv("UPBIT_OPEN_API_ACCESS_KEY")
	}
	if c.Upbit.SecretKey == "" {
		c.Upbit.SecretKey = os.Getenv("UPBIT_OPEN_API_SECRET_KEY")
	}
	if c.AI.APIURL == "" {
		c.AI.APIURL = defaultAIAPIURL
	}
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.AI.Model == "" {
		c.AI.Model = defaultAIModel
	}
	if c.AI.TraceDB == "" {
		c.AI.TraceDB = defaultTraceDB
	}
	if c.News.SerpAPIKey == "" {
		c.News.SerpAPIKey = os.Getenv("SERP_API_KEY")
	}
	if c.News.TimePeriod == "" {
		c.News.TimePeriod = defaultNewsTimePeriod
	}
	if c.News.Articles <= 0 {
		c.News.Articles = defaultNewsArticles
	}
	if c.Strategy.Path == "" {
		c.Strategy.Path = defaultStrategyPath
	}
	if c.Trading.FeeRate <= 0 {
		c.Trading.FeeRate = defaultFeeRate
	}
	if c.Trading.MinOrderKRW <= 0 {
		c.Trading.MinOrderKRW = defaultMinOrderKRW
	}
	if c.Reflection.DBPath == "" {
		c.Reflection.DBPath = defaultDBPath
	}
	if c.Reflection.MinAgeHours <= 0 {
		c.Reflection.MinAgeHours = defaultMinAgeHours
	}
	if c.Reflection.HorizonHours <= 0 {
		c.Reflection.HorizonHours = defaultHorizonHours
	}
}

func validate(c *Config) error {
	switch strings.ToLower(strings.TrimSpace(c.Market.Exchange)) {
	case "upbit", "binance":
	default:
		return fmt.Errorf("market.exchange must be upbit or binance, got %q", c.Market.Exchange)
	}
	if strings.TrimSpace(c.Market.Coin) == "" {
		return fmt.Errorf("market.coin is required")
	}
	if strings.TrimSpace(c.AI.Model) == "" {
		return fmt.Errorf("ai.model is required")
	}
	if c.Trading.FeeRate >= 1 {
		return fmt.Errorf("trading.fee_rate must be a ratio below 1, got %v", c.Trading.FeeRate)
	}
	if c.Trading.RealTrade {
		if !strings.EqualFold(c.Market.Exchange, "upbit") {
			return fmt.Errorf("trading.real_trade requires market.exchange=upbit")
		}
		if c.Upbit.AccessKey == "" || c.Upbit.SecretKey == "" {
			return fmt.Errorf("trading.real_trade requires upbit api keys")
		}
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
		}
	}
	return nil
}
