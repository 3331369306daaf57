package session

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// CookieName はセッショントークンを運ぶクッキーの名前です。
const CookieName = "cn_session"

const (
	keyAuthenticated = "authenticated"
	keyUsername      = "username"
	keyLoginError    = "login_error"
	keyExpiresAt     = "expires_at"
)

// DefaultExpiry は認証済みセッションの標準有効期限です。
const DefaultExpiry = time.Hour

// Manager はセッションレコードの発行・更新・破棄を担います。
// 有効期限の判定はアクセス時にのみ行います（遅延失効）。
type Manager struct {
	ttl time.Duration
}

// NewManager は Manager を作成します。ttl が0以下の場合は DefaultExpiry を使います。
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	return &Manager{ttl: ttl}
}

// MarkAuthenticated はセッションを認証済みにし、有効期限を現在時刻から再設定します。
// 有効期限が延長されるのはこの呼び出し（登録・ログイン成功）のときだけです。
func (m *Manager) MarkAuthenticated(sess sessions.Session, username string) error {
	sess.Set(keyAuthenticated, true)
	sess.Set(keyUsername, username)
	sess.Set(keyExpiresAt, time.Now().Add(m.ttl).Unix())
	sess.Delete(keyLoginError)
	return sess.Save()
}

// IsAuthenticated はセッションが認証済みかどうかを返します。
// 有効期限切れのセッションは認証済みフラグが残っていても未認証として扱います。
func (m *Manager) IsAuthenticated(sess sessions.Session) bool {
	authenticated, _ := sess.Get(keyAuthenticated).(bool)
	if !authenticated {
		return false
	}

	expiresAt := readUnix(sess.Get(keyExpiresAt))
	if expiresAt.IsZero() || time.Now().After(expiresAt) {
		return false
	}
	return true
}

// Username はセッションに記録されたユーザー名を返します。
func (m *Manager) Username(sess sessions.Session) string {
	username, _ := sess.Get(keyUsername).(string)
	return username
}

// SetLoginError はログイン失敗メッセージをセッションに記録します。
func (m *Manager) SetLoginError(sess sessions.Session, message string) error {
	sess.Set(keyLoginError, message)
	return sess.Save()
}

// ConsumeLoginError はログイン失敗メッセージを返し、同時に削除します。
// メッセージは次の1回の表示でのみ読めます。
func (m *Manager) ConsumeLoginError(sess sessions.Session) string {
	message, _ := sess.Get(keyLoginError).(string)
	if message != "" {
		sess.Delete(keyLoginError)
		_ = sess.Save()
	}
	return message
}

// Destroy はセッションを無条件に破棄し、クッキーを失効させます。
func (m *Manager) Destroy(sess sessions.Session) error {
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	return sess.Save()
}

// RequireLogin は保護対象ルートのゲートとなるミドルウェアを返します。
// 未認証の場合はログインページへリダイレクトし、後続の描画は行いません。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		if !m.IsAuthenticated(sess) {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// readUnix はセッション値をUnix秒として読み取ります。
// JSONを経由した値は float64 になるため、数値型をまとめて受け付けます。
func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}
