// Package web は認証を必要としない公開ページを提供します。
package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Home は GET / のハンドラーです。
func Home(c *gin.Context) {
	html := `
    <h1>Welcome!</h1>
    <a href="/createUser">Sign Up</a>
    <br>
    <br>
    <a href="/login">Log In</a>
  `
	renderHTML(c, http.StatusOK, html)
}

// Cat は GET /cat/:id のハンドラーです。
// 1〜3以外のIDは受け取った値をそのまま表示します。
// エスケープしていないため元実装と同じ挙動になります。
func Cat(c *gin.Context) {
	switch id := c.Param("id"); id {
	case "1":
		renderHTML(c, http.StatusOK, "Fluffy: <img src='/images/fluffy.gif' style='width:250px;'>")
	case "2":
		renderHTML(c, http.StatusOK, "Socks: <img src='/images/socks.gif' style='width:250px;'>")
	case "3":
		renderHTML(c, http.StatusOK, "giphy.gif: <img src='/images/giphy.gif' style='width:250px;'>")
	default:
		renderHTML(c, http.StatusOK, "Invalid cat id: "+id)
	}
}

// NotFound はルートに一致しないリクエストのハンドラーです。
func NotFound(c *gin.Context) {
	renderHTML(c, http.StatusNotFound, "Page not found - 404")
}

func renderHTML(c *gin.Context, status int, html string) {
	c.Data(status, "text/html; charset=utf-8", []byte(html))
}
