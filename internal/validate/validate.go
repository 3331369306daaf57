// Package validate は登録・ログインフォームの入力値検証を提供します。
// 検証は純粋関数であり、副作用を持ちません。
package validate

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ルールはタグとして宣言し、go-playground/validator で評価します。
const (
	usernameRules = "required,alphanum,max=20"
	passwordRules = "required,max=20"
	emailRules    = "required,email"
)

var v = validator.New()

// FieldError はどのフィールドがどのルールに違反したかを表します。
type FieldError struct {
	Field string // 違反したフィールド名
	Rule  string // 違反したルールのタグ
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s failed rule %s", e.Field, e.Rule)
}

// Registration はユーザー登録フォームの入力値を検証します。
// 最初に見つかった違反を *FieldError として返します。
func Registration(username, email, password string) error {
	if err := checkVar(username, usernameRules, "username"); err != nil {
		return err
	}
	if err := checkVar(email, emailRules, "email"); err != nil {
		return err
	}
	return checkVar(password, passwordRules, "password")
}

// LoginEmail はログインフォームのメールアドレスを検証します。
func LoginEmail(email string) error {
	return checkVar(email, emailRules, "email")
}

func checkVar(value, rules, field string) error {
	err := v.Var(value, rules)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return &FieldError{Field: field, Rule: verrs[0].Tag()}
	}
	return &FieldError{Field: field, Rule: "invalid"}
}
