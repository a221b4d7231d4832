package orders

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-[A-Z0-9]{6}$`)

func TestGenerateOrderNumber(t *testing.T) {
	day := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		number, err := GenerateOrderNumber(day)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !orderNumberPattern.MatchString(number) {
			t.Fatalf("unexpected format %q", number)
		}
		if !strings.HasPrefix(number, "ORD-20250301-") {
			t.Fatalf("expected date prefix, got %q", number)
		}
		seen[number] = true
	}
	if len(seen) < 45 {
		t.Fatalf("expected mostly distinct numbers, got %d of 50", len(seen))
	}
}
