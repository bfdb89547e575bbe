package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shouni/go-web-scan/v2/internal/pipeline"
	"github.com/shouni/go-web-scan/v2/pkg/classify"
	"github.com/shouni/go-web-scan/v2/pkg/fetcher"
	"github.com/shouni/go-web-scan/v2/pkg/llm"
	"github.com/shouni/go-web-scan/v2/pkg/search"
)

// EnvPrefix は環境変数の接頭辞です (例: WEBSCAN_LLM_PROVIDER)。
const EnvPrefix = "WEBSCAN"

// 設定キー。フラグ名と同じ名前を使います。
const (
	KeyTimeout        = "timeout"
	KeyInsecure       = "insecure"
	KeyChromeTLS      = "chrome-tls"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyLogFile        = "log-file"
	KeyInput          = "input"
	KeyOutput         = "output"
	KeySheet          = "sheet"
	KeyURLColumn      = "url-column"
	KeyCompanyColumn  = "company-column"
	KeyMode           = "mode"
	KeyQuery          = "query"
	KeyKeywords       = "keywords"
	KeyFilterLinks    = "filter-links"
	KeyFallback       = "fallback"
	KeySearchTemplate = "search-template"
	KeyConcurrency    = "concurrency"
	KeyChunkWords     = "chunk-words"
	KeyLocale         = "locale"
	KeyLLMProvider    = "llm-provider"
	KeyLLMModel       = "llm-model"
	KeyLLMBaseURL     = "llm-base-url"
	KeyLLMTimeout     = "llm-timeout"
	KeyLLMAPIKey      = "llm-api-key"
)

// 既定値
const (
	DefaultURLColumn     = "WEBSITE"
	DefaultCompanyColumn = "RAZON_SOCIAL"
	DefaultLocale        = "es"
	DefaultLogLevel      = "info"
	outputSuffix         = "_resultado.xlsx"
)

// ErrInputRequired は入力ファイルが指定されていない場合のエラーです。
var ErrInputRequired = errors.New("入力ファイル (--input) を指定してください")

// LLMConfig はLLMコラボレーターの設定です。
type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// Config はアプリケーション全体の設定です。
type Config struct {
	Timeout   time.Duration
	Insecure  bool
	ChromeTLS bool

	LogLevel  string
	LogFormat string
	LogFile   string

	Input         string
	Output        string
	Sheet         string
	URLColumn     string
	CompanyColumn string

	Mode           pipeline.Mode
	Query          string
	Keywords       []string
	FilterLinks    bool
	Fallback       bool
	SearchTemplate string
	Concurrency    int
	ChunkWords     int
	Locale         string
	Labels         pipeline.Labels

	LLM LLMConfig
}

// NeedsLLM は判定にLLMが必要かどうかを返します。
func (c Config) NeedsLLM() bool {
	return c.Mode == pipeline.ModeSemantic || c.Mode == pipeline.ModeLinks
}

// NewViper は .env・環境変数・任意の YAML 設定ファイルを読み込む viper インスタンスを返します。
// configFile が空の場合、設定ファイルは読み込みません。
func NewViper(configFile string) (*viper.Viper, error) {
	// .env が存在しない場合は無視する
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました (%s): %w", configFile, err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyTimeout, fetcher.DefaultTimeout)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyURLColumn, DefaultURLColumn)
	v.SetDefault(KeyCompanyColumn, DefaultCompanyColumn)
	v.SetDefault(KeyMode, string(pipeline.ModeKeywords))
	v.SetDefault(KeySearchTemplate, search.DefaultQueryTemplate)
	v.SetDefault(KeyConcurrency, pipeline.DefaultConcurrency)
	v.SetDefault(KeyChunkWords, classify.DefaultChunkWords)
	v.SetDefault(KeyFilterLinks, true)
	v.SetDefault(KeyLocale, DefaultLocale)
	v.SetDefault(KeyLLMProvider, llm.ProviderOpenAI)
	v.SetDefault(KeyLLMTimeout, llm.DefaultTimeout)
}

// Load は viper の値から Config を組み立てて検証します。
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Timeout:   v.GetDuration(KeyTimeout),
		Insecure:  v.GetBool(KeyInsecure),
		ChromeTLS: v.GetBool(KeyChromeTLS),

		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
		LogFile:   v.GetString(KeyLogFile),

		Input:         strings.TrimSpace(v.GetString(KeyInput)),
		Output:        strings.TrimSpace(v.GetString(KeyOutput)),
		Sheet:         v.GetString(KeySheet),
		URLColumn:     v.GetString(KeyURLColumn),
		CompanyColumn: v.GetString(KeyCompanyColumn),

		Query:          strings.TrimSpace(v.GetString(KeyQuery)),
		Keywords:       splitList(v.GetString(KeyKeywords)),
		FilterLinks:    v.GetBool(KeyFilterLinks),
		Fallback:       v.GetBool(KeyFallback),
		SearchTemplate: v.GetString(KeySearchTemplate),
		Concurrency:    v.GetInt(KeyConcurrency),
		ChunkWords:     v.GetInt(KeyChunkWords),
		Locale:         v.GetString(KeyLocale),

		LLM: LLMConfig{
			Provider: strings.ToLower(strings.TrimSpace(v.GetString(KeyLLMProvider))),
			APIKey:   v.GetString(KeyLLMAPIKey),
			Model:    v.GetString(KeyLLMModel),
			BaseURL:  v.GetString(KeyLLMBaseURL),
			Timeout:  v.GetDuration(KeyLLMTimeout),
		},
	}

	// 1. 判定方式とロケール
	mode, err := pipeline.ParseMode(v.GetString(KeyMode))
	if err != nil {
		return Config{}, err
	}
	cfg.Mode = mode

	labels, err := pipeline.LabelsFor(cfg.Locale)
	if err != nil {
		return Config{}, err
	}
	cfg.Labels = labels

	// 2. 数値の検証
	if cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("タイムアウトは正の値を指定してください: %s", cfg.Timeout)
	}
	if cfg.Concurrency < 1 {
		return Config{}, fmt.Errorf("同時処理数は1以上を指定してください: %d", cfg.Concurrency)
	}
	if cfg.ChunkWords < 1 {
		return Config{}, fmt.Errorf("断片の語数は1以上を指定してください: %d", cfg.ChunkWords)
	}
	if cfg.URLColumn == "" {
		return Config{}, errors.New("URL列の見出しを指定してください")
	}

	// 3. キーワードと出力先の既定値
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = classify.DefaultKeywords
	}
	if cfg.Input != "" && cfg.Output == "" {
		cfg.Output = DefaultOutputPath(cfg.Input)
	}

	// 4. LLMの認証情報 (プロバイダー固有の環境変数にフォールバック)
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerAPIKey(v, cfg.LLM.Provider)
	}
	if cfg.NeedsLLM() && cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("%s モードにはLLMのAPIキーが必要です (%s_LLM_API_KEY または %s)",
			cfg.Mode, EnvPrefix, providerEnv(cfg.LLM.Provider))
	}

	return cfg, nil
}

// RequireInput は scan コマンド用に入力ファイルの指定を検証します。
func (c Config) RequireInput() error {
	if c.Input == "" {
		return ErrInputRequired
	}
	return nil
}

// DefaultOutputPath は入力ファイル名から出力ファイル名を導きます (例: empresas.xlsx → empresas_resultado.xlsx)。
func DefaultOutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + outputSuffix
}

func providerEnv(provider string) string {
	if provider == llm.ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func providerAPIKey(v *viper.Viper, provider string) string {
	key := providerEnv(provider)
	if err := v.BindEnv(key, key); err != nil {
		return ""
	}
	return v.GetString(key)
}

// splitList はカンマ区切りの文字列を分割し、前後の空白を除いて空要素を捨てます。
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
