//go:build !integration

package security

import (
	"errors"
	"testing"
	"time"
)

func TestCredentialSealer(t *testing.T) {
	const (
		botA = "111:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
		botB = "222:BBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
	)
	s, err := NewCredentialSealer("0123456789abcdef")
	if err != nil {
		t.Fatalf("NewCredentialSealer: %v", err)
	}

	t.Run("round trip with a fresh nonce", func(t *testing.T) {
		ct1, _ := s.Seal(botA, "123|secret")
		ct2, _ := s.Seal(botA, "123|secret")
		if ct1 == ct2 {
			t.Error("expected a fresh nonce per seal")
		}
		pt, err := s.Open(botA, ct1)
		if err != nil || pt != "123|secret" {
			t.Fatalf("Open = (%q, %v)", pt, err)
		}
	})

	t.Run("value is bound to its bot", func(t *testing.T) {
		ct, _ := s.Seal(botA, "123|secret")
		if _, err := s.Open(botB, ct); !errors.Is(err, ErrSealedCredential) {
			t.Fatalf("expected ErrSealedCredential, got %v", err)
		}
	})

	t.Run("malformed input", func(t *testing.T) {
		for _, in := range []string{"", "AAAA", "v1.", "v1.!!!", "v2.AAAAAAAAAAAAAAAAAAAAAAAAAAAA"} {
			if _, err := s.Open(botA, in); !errors.Is(err, ErrSealedCredential) {
				t.Errorf("Open(%q) = %v", in, err)
			}
		}
	})
}

func TestCredentialSealer_RejectsBadKey(t *testing.T) {
	if _, err := NewCredentialSealer("short"); err == nil {
		t.Fatal("expected error for a 5 byte key")
	}
}

func TestStateCodec(t *testing.T) {
	const token = "111:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	t.Run("raw state without secret", func(t *testing.T) {
		c := NewStateCodec("", 0)
		s, _ := c.Encode(token)
		if s != token {
			t.Fatalf("expected raw token, got %q", s)
		}
		got, err := c.Decode(s)
		if err != nil || got != token {
			t.Fatalf("Decode = (%q, %v)", got, err)
		}
	})

	t.Run("signed state round trip", func(t *testing.T) {
		c := NewStateCodec("s3cr3t", time.Minute)
		s, err := c.Encode(token)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if s == token {
			t.Fatal("expected signed state")
		}
		got, err := c.Decode(s)
		if err != nil || got != token {
			t.Fatalf("Decode = (%q, %v)", got, err)
		}
	})

	t.Run("forged or expired state is rejected", func(t *testing.T) {
		c := NewStateCodec("s3cr3t", time.Minute)
		if _, err := c.Decode(token); err == nil {
			t.Error("raw token must not pass when a secret is configured")
		}
		other := NewStateCodec("other", time.Minute)
		s, _ := other.Encode(token)
		if _, err := c.Decode(s); err == nil {
			t.Error("state signed with another secret must fail")
		}
		s, _ = c.Encode(token)
		c.now = func() time.Time { return time.Now().Add(time.Hour) }
		if _, err := c.Decode(s); err == nil {
			t.Error("expired state must fail")
		}
	})
}
