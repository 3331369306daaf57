// Package password はパスワードの一方向ハッシュ化と照合を提供します。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost はbcryptの標準コストファクターです。
const DefaultCost = 12

// Hasher はbcryptによるハッシュ化と照合をまとめた構造体です。
// 構築後は不変であり、複数ゴルーチンから安全に利用できます。
type Hasher struct {
	cost int
}

// NewHasher は Hasher を作成します。
// コストが bcrypt の有効範囲外の場合はエラーを返します。
func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d must be in [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash は平文パスワードをソルト付きでハッシュ化します。
// ソルトは呼び出しごとにbcrypt内部で生成されるため、
// 同じ平文でも毎回異なるダイジェストになります。
func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify は平文パスワードとダイジェストを照合します。
// 不正な形式のダイジェストは照合失敗として扱います（フェイルクローズ）。
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
