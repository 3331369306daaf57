package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/catnap/internal/password"
	"github.com/yourusername/catnap/internal/session"
	"github.com/yourusername/catnap/internal/user"
)

type stubUserStore struct {
	users     []user.User
	createErr error
	findErr   error
}

func (s *stubUserStore) Create(ctx context.Context, u user.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.users = append(s.users, u)
	return nil
}

func (s *stubUserStore) FindByEmail(ctx context.Context, email string) ([]user.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	var matches []user.User
	for _, u := range s.users {
		if u.Email == email {
			matches = append(matches, u)
		}
	}
	return matches, nil
}

type testApp struct {
	router  *gin.Engine
	store   *stubUserStore
	cookies []*http.Cookie
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hasher, err := password.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher returned error: %v", err)
	}
	manager := session.NewManager(time.Hour)
	store := &stubUserStore{}
	handler := NewHandler(store, hasher, manager)

	router := gin.New()
	router.Use(sessions.Sessions(session.CookieName, memstore.NewStore([]byte("test-secret"))))
	router.GET("/createUser", handler.SignupForm)
	router.POST("/submitUser", handler.Register)
	router.GET("/login", handler.LoginForm)
	router.POST("/loggingin", handler.Login)
	router.POST("/logout", handler.Logout)
	router.GET("/loggedin", manager.RequireLogin(), handler.LoggedIn)

	return &testApp{router: router, store: store}
}

// do はセッションクッキーを引き継ぎながらリクエストを実行します。
func (a *testApp) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, cookie := range a.cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	if set := rec.Result().Cookies(); len(set) > 0 {
		a.cookies = set
	}
	return rec
}

func (a *testApp) register(t *testing.T, username, email, pw string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, http.MethodPost, "/submitUser", url.Values{
		"username": {username},
		"email":    {email},
		"password": {pw},
	})
}

func (a *testApp) login(t *testing.T, email, pw string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, http.MethodPost, "/loggingin", url.Values{
		"email":    {email},
		"password": {pw},
	})
}

func requireRedirect(t *testing.T, rec *httptest.ResponseRecorder, target string) {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != target {
		t.Fatalf("redirect target = %q, want %q", loc, target)
	}
}

func TestRegisterThenGate(t *testing.T) {
	app := newTestApp(t)

	rec := app.register(t, "alice", "a@example.com", "pw123")
	requireRedirect(t, rec, "/loggedin")

	if len(app.store.users) != 1 {
		t.Fatalf("expected 1 persisted user, got %d", len(app.store.users))
	}
	if app.store.users[0].PasswordHash == "pw123" {
		t.Fatal("plaintext password must not be persisted")
	}

	rec = app.do(t, http.MethodGet, "/loggedin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Hello alice!") {
		t.Fatalf("protected page must greet the user, got %q", rec.Body.String())
	}
}

func TestRegisterValidationFailure(t *testing.T) {
	cases := []struct {
		name     string
		username string
		email    string
		pw       string
	}{
		{"username with symbol", "alice!", "a@example.com", "pw123"},
		{"missing username", "", "a@example.com", "pw123"},
		{"malformed email", "alice", "not-an-email", "pw123"},
		{"missing password", "alice", "a@example.com", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			rec := app.register(t, tc.username, tc.email, tc.pw)
			requireRedirect(t, rec, "/createUser")
			if len(app.store.users) != 0 {
				t.Fatal("validation failure must not persist any user")
			}
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	app := newTestApp(t)
	seedUser(t, app.store, "alice", "a@example.com", "pw123")

	rec := app.login(t, "a@example.com", "pw123")
	requireRedirect(t, rec, "/loggedin")

	rec = app.do(t, http.MethodGet, "/loggedin", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Hello alice!") {
		t.Fatalf("unexpected protected page: %d %q", rec.Code, rec.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	seedUser(t, app.store, "alice", "a@example.com", "pw123")

	rec := app.login(t, "a@example.com", "wrong")
	requireRedirect(t, rec, "/login")

	// エラーメッセージは一度だけ表示される
	rec = app.do(t, http.MethodGet, "/login", nil)
	if !strings.Contains(rec.Body.String(), "Incorrect password.") {
		t.Fatalf("login form must show the error once, got %q", rec.Body.String())
	}
	rec = app.do(t, http.MethodGet, "/login", nil)
	if strings.Contains(rec.Body.String(), "Incorrect password.") {
		t.Fatal("login error must be cleared after one read")
	}

	rec = app.do(t, http.MethodGet, "/loggedin", nil)
	requireRedirect(t, rec, "/login")
}

func TestLoginUnknownEmail(t *testing.T) {
	app := newTestApp(t)

	rec := app.login(t, "nobody@example.com", "pw123")
	requireRedirect(t, rec, "/login")

	rec = app.do(t, http.MethodGet, "/login", nil)
	if !strings.Contains(rec.Body.String(), "Email not registered.") {
		t.Fatalf("login form must report the unknown email, got %q", rec.Body.String())
	}
}

func TestLoginAmbiguousEmail(t *testing.T) {
	app := newTestApp(t)
	// 重複メールは拒否されないため複数件ヒットし得る。その場合も認証しない
	seedUser(t, app.store, "alice", "a@example.com", "pw123")
	seedUser(t, app.store, "alice2", "a@example.com", "pw123")

	rec := app.login(t, "a@example.com", "pw123")
	requireRedirect(t, rec, "/login")

	rec = app.do(t, http.MethodGet, "/login", nil)
	if !strings.Contains(rec.Body.String(), "Email not registered.") {
		t.Fatalf("ambiguous email must be treated as unknown, got %q", rec.Body.String())
	}
}

func TestLoginMalformedEmail(t *testing.T) {
	app := newTestApp(t)

	rec := app.login(t, "not-an-email", "pw123")
	requireRedirect(t, rec, "/login")

	// 形式エラーはメッセージを残さない
	rec = app.do(t, http.MethodGet, "/login", nil)
	body := rec.Body.String()
	if strings.Contains(body, "Email not registered.") || strings.Contains(body, "Incorrect password.") {
		t.Fatalf("validation failure must not leave a login error, got %q", body)
	}
}

func TestLoginStoreError(t *testing.T) {
	app := newTestApp(t)
	app.store.findErr = context.DeadlineExceeded

	// ストア障害は「認証失敗」に混ぜず汎用エラーで返す
	rec := app.login(t, "a@example.com", "pw123")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Email not registered.") {
		t.Fatal("store outage must not be reported as bad credentials")
	}
}

func TestRegisterStoreError(t *testing.T) {
	app := newTestApp(t)
	app.store.createErr = context.DeadlineExceeded

	rec := app.register(t, "alice", "a@example.com", "pw123")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	rec = app.do(t, http.MethodGet, "/loggedin", nil)
	requireRedirect(t, rec, "/login")
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)

	rec := app.register(t, "alice", "a@example.com", "pw123")
	requireRedirect(t, rec, "/loggedin")

	rec = app.do(t, http.MethodPost, "/logout", nil)
	requireRedirect(t, rec, "/login")

	rec = app.do(t, http.MethodGet, "/loggedin", nil)
	requireRedirect(t, rec, "/login")
}

func TestLogoutWithoutSession(t *testing.T) {
	app := newTestApp(t)

	// 匿名状態からのログアウトも成功扱い
	rec := app.do(t, http.MethodPost, "/logout", nil)
	requireRedirect(t, rec, "/login")
}

func seedUser(t *testing.T, store *stubUserStore, username, email, pw string) {
	t.Helper()
	digest, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash seed password: %v", err)
	}
	store.users = append(store.users, user.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(digest),
	})
}
