package api

import "golang.org/x/crypto/bcrypt"

// checkPassword reports whether token matches the bcrypt digest hash.
func checkPassword(hash []byte, token string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(token)) == nil
}
