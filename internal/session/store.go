// Package session はRedisを永続層とするセッション管理を提供します。
package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
)

// Store は gin-contrib/sessions 互換のセッションストアです。
// セッション本体はJSONにエンコードし、AES-256-GCMで暗号化してRedisに保存します。
// クッキーにはセッションIDのみを署名付きで載せます。
// 暗号化鍵と署名鍵は別の秘密情報から導出します。
type Store struct {
	rdb    *redis.Client
	codecs []securecookie.Codec
	opts   *gsessions.Options
	aead   cipher.AEAD
	ttl    time.Duration
}

// NewStore は Store を作成します。
// signingSecret はクッキー署名用、cryptoSecret は保存データ暗号化用の秘密情報です。
func NewStore(rdb *redis.Client, ttl time.Duration, signingSecret, cryptoSecret string) (*Store, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	key := sha256.Sum256([]byte(cryptoSecret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session cipher: %w", err)
	}

	return &Store{
		rdb:    rdb,
		codecs: securecookie.CodecsFromPairs([]byte(signingSecret)),
		opts: &gsessions.Options{
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		},
		aead: aead,
		ttl:  ttl,
	}, nil
}

// Options はセッションクッキーのオプションを設定します。
func (s *Store) Options(opts sessions.Options) {
	s.opts = opts.ToGorillaOptions()
}

// Get は同一リクエスト内でセッションを再構築しないよう、レジストリ経由で返します。
func (s *Store) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New はクッキーからセッションを復元します。
// 署名検証に失敗したクッキーや復元できないIDはエラーにせず、
// 新しい匿名セッションを発行します。
func (s *Store) New(r *http.Request, name string) (*gsessions.Session, error) {
	session := gsessions.NewSession(s, name)
	opts := *s.opts
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, cookie.Value, &id, s.codecs...); err != nil {
		return session, nil
	}

	values, err := s.load(r.Context(), id)
	if err != nil || values == nil {
		return session, nil
	}

	session.ID = id
	session.Values = values
	session.IsNew = false
	return session, nil
}

// Save はセッションをRedisへ保存し、署名付きIDをクッキーに書き込みます。
// MaxAge が0以下の場合はセッションを破棄します。
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *gsessions.Session) error {
	if session.Options.MaxAge <= 0 {
		if err := s.erase(r.Context(), session.ID); err != nil {
			return err
		}
		http.SetCookie(w, gsessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if err := s.persist(r.Context(), session); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, gsessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

func (s *Store) persist(ctx context.Context, session *gsessions.Session) error {
	payload := make(map[string]interface{}, len(session.Values))
	for k, v := range session.Values {
		key, ok := k.(string)
		if !ok {
			return fmt.Errorf("session key must be a string, got %T", k)
		}
		payload[key] = v
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode session payload: %w", err)
	}
	sealed, err := s.seal(plaintext)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(session.ID), sealed, s.ttl).Err()
}

func (s *Store) load(ctx context.Context, id string) (map[interface{}]interface{}, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	plaintext, err := s.open(data)
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, err
	}

	values := make(map[interface{}]interface{}, len(payload))
	for k, v := range payload {
		values[k] = v
	}
	return values, nil
}

func (s *Store) erase(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.rdb.Del(ctx, sessionKey(id)).Err()
}

// seal は平文をAES-256-GCMで暗号化し、ノンスを先頭に連結して返します。
func (s *Store) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open は seal の逆変換です。改ざんされたデータはエラーになります。
func (s *Store) open(data []byte) ([]byte, error) {
	size := s.aead.NonceSize()
	if len(data) < size {
		return nil, fmt.Errorf("session payload is too short")
	}
	plaintext, err := s.aead.Open(nil, data[:size], data[size:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session payload: %w", err)
	}
	return plaintext, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
