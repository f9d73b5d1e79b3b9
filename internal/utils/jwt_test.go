package utils

import (
	"errors"
	"testing"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	want := Identity{UserID: 42, Username: "alice", Role: "SUBSCRIBER"}
	tok, err := NewAccessToken("s3cret", want, 15)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if got != want {
		t.Fatalf("identity = %+v, want %+v", got, want)
	}
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	tok, err := NewAccessToken("s3cret", Identity{UserID: 1, Username: "bob", Role: "MANAGER"}, 15)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken("other", tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestAccessTokenRejectsExpired(t *testing.T) {
	tok, err := NewAccessToken("s3cret", Identity{UserID: 1, Username: "bob", Role: "MANAGER"}, -5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken("s3cret", tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(hash, "hunter2") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(hash, "hunter3") {
		t.Fatal("wrong password accepted")
	}
}
