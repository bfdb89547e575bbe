package cmd

import (
	"fmt"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-web-scan/v2/internal/config"
	"github.com/shouni/go-web-scan/v2/internal/logging"
	"github.com/shouni/go-web-scan/v2/pkg/fetcher"
)

// --- グローバル定数 ---

const appName = "web-scan"

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグのうち、viper を経由しないものを保持
type AppFlags struct {
	ConfigFile string // --config-file YAML設定ファイル
}

var Flags AppFlags

var (
	appConfig config.Config
	appLogger = zap.NewNop()
)

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&Flags.ConfigFile, "config-file", "", "YAML設定ファイルのパス")
	flags.Duration(config.KeyTimeout, fetcher.DefaultTimeout, "1回のHTTPアクセスのタイムアウト")
	flags.Bool(config.KeyInsecure, false, "TLS証明書の検証を無効にする")
	flags.Bool(config.KeyChromeTLS, false, "Chrome相当のTLSフィンガープリントで接続する (HTTP/1.1)")
	flags.String(config.KeyLogLevel, config.DefaultLogLevel, "ログレベル (debug, info, warn, error)")
	flags.String(config.KeyLogFormat, logging.FormatConsole, "ログ形式 (console, json)")
	flags.String(config.KeyLogFile, "", "ログをローテーション付きで書き出すファイル")
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	// 1. 設定の読み込み (.env → 環境変数 → 設定ファイル → フラグ)
	v, err := config.NewViper(Flags.ConfigFile)
	if err != nil {
		return err
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("フラグの設定に失敗しました: %w", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("設定エラー: %w", err)
	}

	// 2. ロガーの初期化
	if clibase.Flags.Verbose {
		cfg.LogLevel = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗しました: %w", err)
	}

	appConfig = cfg
	appLogger = logger
	appLogger.Debug("設定を読み込みました",
		zap.Duration("timeout", cfg.Timeout),
		zap.String("mode", string(cfg.Mode)),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Bool("fallback", cfg.Fallback),
	)
	return nil
}

// --- エントリポイント ---

// Execute は、clibase を使用してルートコマンドを実行します。
func Execute() {
	defer func() { _ = appLogger.Sync() }()

	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		scanCmd,
		searchCmd,
	)
}
