package session

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestToken(t *testing.T) {
	if got := Token("abc.def.ghi"); got != "JWT abc.def.ghi" {
		t.Fatalf("Token() = %q, want %q", got, "JWT abc.def.ghi")
	}
	if got := Token(""); got != "JWT " {
		t.Fatalf("Token(\"\") = %q, want %q", got, "JWT ")
	}
}

func TestSubject(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-42"}).SignedString([]byte("not-our-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name   string
		userID string
		want   string
	}{
		{name: "jwt user id", userID: signed, want: "user-42"},
		{name: "plain user id", userID: "admin", want: ""},
		{name: "garbage with dots", userID: "a.b.c", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Subject(tt.userID); got != tt.want {
				t.Errorf("Subject() = %q, want %q", got, tt.want)
			}
		})
	}
}
