// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
// 起動時に一度だけ構築し、以降は変更せずに各コンポーネントへ注入します。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// MongoDB設定（ユーザーコレクション）
	MongoURI      string // MongoDB接続URI
	MongoDatabase string // 使用するデータベース名

	// セッション設定
	SessionRedisAddr     string // セッションストア用Redisのアドレス
	SessionRedisPassword string // セッションストア用Redisのパスワード
	SessionSecret        string // セッションCookie署名用の秘密鍵
	SessionCryptoSecret  string // セッションペイロード暗号化用の秘密鍵（署名鍵とは別）
	SessionExpireMinutes int    // 認証済みセッションの有効期限（分）

	// パスワードハッシュ設定
	BcryptCost int // bcryptのコストファクター
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "3000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// MongoDB設定
		MongoURI:      getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "catnap"),

		// セッション設定
		SessionRedisAddr:     getEnv("SESSION_REDIS_ADDR", "127.0.0.1:6379"),
		SessionRedisPassword: getEnv("SESSION_REDIS_PASSWORD", ""),
		SessionSecret:        getEnv("SESSION_SECRET", ""),
		SessionCryptoSecret:  getEnv("SESSION_CRYPTO_SECRET", ""),
		SessionExpireMinutes: getEnvAsInt("SESSION_EXPIRE_MINUTES", 60),

		// パスワードハッシュ設定
		BcryptCost: getEnvAsInt("BCRYPT_COST", 12),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	// ローカル開発では秘密鍵は任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.SessionCryptoSecret == "" {
			return fmt.Errorf("SESSION_CRYPTO_SECRET is required in release mode")
		}
		if c.SessionCryptoSecret == c.SessionSecret {
			return fmt.Errorf("SESSION_CRYPTO_SECRET must differ from SESSION_SECRET")
		}
	}

	if c.SessionExpireMinutes <= 0 {
		return fmt.Errorf("SESSION_EXPIRE_MINUTES must be positive")
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
