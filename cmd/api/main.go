// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourusername/catnap/internal/auth"
	"github.com/yourusername/catnap/internal/config"
	"github.com/yourusername/catnap/internal/password"
	"github.com/yourusername/catnap/internal/session"
	"github.com/yourusername/catnap/internal/user"
	"github.com/yourusername/catnap/internal/web"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// MongoDBへの接続（ユーザーコレクション）
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()
	userStore := user.NewStore(mongoClient.Database(cfg.MongoDatabase).Collection(user.CollectionName))

	// セッションストアの設定（Redis + 暗号化、クッキー署名鍵は必須）
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.SessionRedisAddr,
		Password: cfg.SessionRedisPassword,
	})
	ttl := time.Duration(cfg.SessionExpireMinutes) * time.Minute
	store, err := session.NewStore(rdb, ttl, cfg.SessionSecret, cfg.SessionCryptoSecret)
	if err != nil {
		log.Fatalf("Failed to create session store: %v", err)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()
	router.Use(sessions.Sessions(session.CookieName, store))

	// 依存コンポーネントの組み立て
	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		log.Fatalf("Failed to create password hasher: %v", err)
	}
	manager := session.NewManager(ttl)
	authHandler := auth.NewHandler(userStore, hasher, manager)

	// ルーティングの設定
	setupRoutes(router, authHandler, manager)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRoutes は公開ページと認証フローの配線を行います。
func setupRoutes(router *gin.Engine, authHandler *auth.Handler, manager *session.Manager) {
	// 公開ページ
	router.GET("/", web.Home)
	router.GET("/cat/:id", web.Cat)
	router.Static("/images", "./public/images")

	// 登録・ログインフロー
	router.GET("/createUser", authHandler.SignupForm)
	router.POST("/submitUser", authHandler.Register)
	router.GET("/login", authHandler.LoginForm)
	router.POST("/loggingin", authHandler.Login)
	router.POST("/logout", authHandler.Logout)

	// 保護対象ページ
	router.GET("/loggedin", manager.RequireLogin(), authHandler.LoggedIn)

	// 未定義ルートは404
	router.NoRoute(web.NotFound)
}
