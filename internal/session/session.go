// Package session derives the platform credential from the host's user id.
package session

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const scheme = "JWT "

// Token builds the Authorization header value for userID. The host hands the
// plugin the user's platform token as its user id, so it is used verbatim.
func Token(userID string) string {
	return scheme + userID
}

// Subject returns the "sub" claim when userID looks like a JWT, for logging.
// The token is NOT verified; the platform is the only authority on it.
func Subject(userID string) string {
	userID = strings.TrimSpace(userID)
	if strings.Count(userID, ".") != 2 {
		return ""
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(userID, &claims); err != nil {
		return ""
	}
	return claims.Subject
}
