//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Race builds are much slower, keep the suites within their timeouts.
	return bcrypt.MinCost
}
