package credential

import (
	"testing"

	"go.uber.org/zap"
)

func TestStoreSelect(t *testing.T) {
	s := NewStore("", zap.NewNop())
	if s.HasKey() {
		t.Fatalf("empty store should report no key")
	}

	var notified []string
	s.OnSelect(func(key string) { notified = append(notified, key) })

	if err := s.Select("  "); err == nil {
		t.Fatalf("blank key should be rejected")
	}
	if err := s.Select(" abc123 "); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if s.APIKey() != "abc123" || !s.HasKey() {
		t.Fatalf("unexpected key %q", s.APIKey())
	}

	_ = s.Select("abc123")
	if len(notified) != 1 {
		t.Fatalf("listeners should fire once per change, got %d", len(notified))
	}
}

func TestMask(t *testing.T) {
	if Mask("abcdefgh") != "****efgh" {
		t.Fatalf("unexpected mask %q", Mask("abcdefgh"))
	}
	if Mask("ab") != "****" {
		t.Fatalf("short keys should be fully masked")
	}
}
