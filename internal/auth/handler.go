// Package auth は登録・ログイン・ログアウトの各フローを組み立てます。
package auth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/catnap/internal/password"
	"github.com/yourusername/catnap/internal/session"
	"github.com/yourusername/catnap/internal/user"
	"github.com/yourusername/catnap/internal/validate"
)

// ログインフォームに表示する固定メッセージ。
// ストア障害はこの2つに混ぜず、必ず汎用エラーとして返します。
const (
	msgEmailNotRegistered = "Email not registered."
	msgIncorrectPassword  = "Incorrect password."
)

// UserStore はハンドラーが必要とするユーザーストア操作です。
type UserStore interface {
	Create(ctx context.Context, u user.User) error
	FindByEmail(ctx context.Context, email string) ([]user.User, error)
}

// Handler は認証フローのHTTPハンドラーをまとめた構造体です。
type Handler struct {
	users    UserStore
	hasher   *password.Hasher
	sessions *session.Manager
}

// NewHandler は Handler を作成します。
func NewHandler(users UserStore, hasher *password.Hasher, sessions *session.Manager) *Handler {
	return &Handler{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
	}
}

// SignupForm は GET /createUser のハンドラーです。
func (h *Handler) SignupForm(c *gin.Context) {
	html := `
    <h2>Sign Up</h2>
    <form action='/submitUser' method='post'>
    <input name='username' type='text' placeholder='name'>
      <br>
      <br>
    <input name='email' type='text' placeholder='email'>
    <br>
    <br>
    <input name='password' type='password' placeholder='password'>
    <br>
    <br>
    <button>Submit</button>
    </form>
    `
	renderHTML(c, http.StatusOK, html)
}

// Register は POST /submitUser のハンドラーです。
// 検証に失敗した場合は何も永続化せずフォームへ戻します。
// 成功した場合はログイン成功と同じようにセッションを認証済みにします。
func (h *Handler) Register(c *gin.Context) {
	username := c.PostForm("username")
	email := c.PostForm("email")
	plaintext := c.PostForm("password")

	if err := validate.Registration(username, email, plaintext); err != nil {
		c.Redirect(http.StatusFound, "/createUser")
		return
	}

	digest, err := h.hasher.Hash(plaintext)
	if err != nil {
		internalError(c)
		return
	}

	// メールアドレスの重複チェックは行わない（既知の制限）
	newUser := user.User{
		Username:     username,
		Email:        email,
		PasswordHash: digest,
	}
	if err := h.users.Create(c.Request.Context(), newUser); err != nil {
		internalError(c)
		return
	}

	sess := sessions.Default(c)
	if err := h.sessions.MarkAuthenticated(sess, username); err != nil {
		internalError(c)
		return
	}
	c.Redirect(http.StatusFound, "/loggedin")
}

// LoginForm は GET /login のハンドラーです。
// 保留中のログインエラーがあれば一度だけ表示し、消去します。
func (h *Handler) LoginForm(c *gin.Context) {
	sess := sessions.Default(c)
	message := h.sessions.ConsumeLoginError(sess)

	errorHTML := ""
	if message != "" {
		errorHTML = fmt.Sprintf(`<p style="color:red;">%s</p>`, message)
	}

	html := fmt.Sprintf(`
      <h2>log In </h2>
      <form action='/loggingin' method='post'>
      <input name='email' type='email' placeholder='email'>
      <br>
      <input name='password' type='password' placeholder='password'>
      <br>
      <br>
      <button>Submit</button>
      </form>
      %s
    `, errorHTML)
	renderHTML(c, http.StatusOK, html)
}

// Login は POST /loggingin のハンドラーです。
func (h *Handler) Login(c *gin.Context) {
	email := c.PostForm("email")
	plaintext := c.PostForm("password")

	if err := validate.LoginEmail(email); err != nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	matches, err := h.users.FindByEmail(c.Request.Context(), email)
	if err != nil {
		// ストア障害を認証失敗として扱うと障害がセキュリティ事象に見えてしまう
		internalError(c)
		return
	}

	sess := sessions.Default(c)

	// 0件も複数件も同じ扱いにする（フェイルクローズ）
	if len(matches) != 1 {
		if err := h.sessions.SetLoginError(sess, msgEmailNotRegistered); err != nil {
			internalError(c)
			return
		}
		c.Redirect(http.StatusFound, "/login")
		return
	}

	if !h.hasher.Verify(plaintext, matches[0].PasswordHash) {
		if err := h.sessions.SetLoginError(sess, msgIncorrectPassword); err != nil {
			internalError(c)
			return
		}
		c.Redirect(http.StatusFound, "/login")
		return
	}

	if err := h.sessions.MarkAuthenticated(sess, matches[0].Username); err != nil {
		internalError(c)
		return
	}
	c.Redirect(http.StatusFound, "/loggedin")
}

// LoggedIn は GET /loggedin のハンドラーです。
// 認証チェックは session.Manager の RequireLogin ミドルウェアが行います。
func (h *Handler) LoggedIn(c *gin.Context) {
	sess := sessions.Default(c)
	username := h.sessions.Username(sess)
	image := rand.IntN(3) + 1

	html := fmt.Sprintf(`
      <h1>Hello %s!</h1>
      <img src="/images/cat%d.gif" style="width:250px;">
      <br>
      <br>
      <form action="/logout" method="POST">
        <button type="submit">Sign Out</button>
      </form>
      `, username, image)
	renderHTML(c, http.StatusOK, html)
}

// Logout は POST /logout のハンドラーです。
// 直前の状態に関わらずセッションを破棄します。
func (h *Handler) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	if err := h.sessions.Destroy(sess); err != nil {
		internalError(c)
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

func renderHTML(c *gin.Context, status int, html string) {
	c.Data(status, "text/html; charset=utf-8", []byte(html))
}

func internalError(c *gin.Context) {
	renderHTML(c, http.StatusInternalServerError, "Something went wrong - 500")
}
