package config

import "time"

// Config is the main configuration carrier for the trader.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Market     MarketConfig     `yaml:"market"`
	Upbit      UpbitConfig      `yaml:"upbit"`
	AI         AIConfig         `yaml:"ai"`
	News       NewsConfig       `yaml:"news"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Trading    TradingConfig    `yaml:"trading"`
	Reflection ReflectionConfig `yaml:"reflection"`
	Notify     NotifyConfig     `yaml:"notify"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`
	LogPath  string `yaml:"log_path"`
	LLMLog   string `yaml:"llm_log_path"`
}

// MarketConfig selects the market-data gateway. Exchange is "upbit"
// (default, KRW quote) or "binance" (USDT quote, paper setups).
type MarketConfig struct {
	Exchange string `yaml:"exchange"`
	Coin     string `yaml:"coin"`
}

type UpbitConfig struct {
	RESTBaseURL    string `yaml:"rest_base_url"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (u UpbitConfig) HTTPTimeout() time.Duration {
	if u.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(u.TimeoutSeconds) * time.Second
}

type AIConfig struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	TraceDB        string `yaml:"trace_db"`
}

func (a AIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

type NewsConfig struct {
	SerpAPIKey string `yaml:"serpapi_key"`
	TimePeriod string `yaml:"time_period"`
	Articles   int    `yaml:"articles"`
}

type StrategyConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// TradingConfig controls execution. RealTrade is threaded explicitly
// into the executor; there is no ambient dry-run toggle anywhere else.
type TradingConfig struct {
	RealTrade            bool    `yaml:"real_trade"`
	FeeRate              float64 `yaml:"fee_rate"`
	MinOrderKRW          float64 `yaml:"min_order_krw"`
	CycleIntervalMinutes int     `yaml:"cycle_interval_minutes"`
}

func (t TradingConfig) CycleInterval() time.Duration {
	if t.CycleIntervalMinutes <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(t.CycleIntervalMinutes) * time.Minute
}

type ReflectionConfig struct {
	DBPath          string `yaml:"db_path"`
	MinAgeHours     int    `yaml:"min_age_hours"`
	HorizonHours    int    `yaml:"horizon_hours"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

func (r ReflectionConfig) MinAgeDuration() time.Duration {
	if r.MinAgeHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(r.MinAgeHours) * time.Hour
}

func (r ReflectionConfig) Interval() time.Duration {
	if r.IntervalMinutes <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(r.IntervalMinutes) * time.Minute
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}
