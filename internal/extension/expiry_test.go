package extension

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestExpiryEmbedsEpoch(t *testing.T) {
	instant := time.Date(2027, 6, 1, 12, 0, 0, 0, time.UTC)
	code, err := NewExpiry(instant).Code()
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}

	if !strings.Contains(code, fmt.Sprintf("_EXPIRY_EPOCH = %d", instant.Unix())) {
		t.Errorf("fragment missing exact epoch:\n%s", code)
	}
	if !strings.Contains(code, "2027-06-01T12:00:00Z") {
		t.Errorf("fragment missing human-readable instant:\n%s", code)
	}
}

func TestExpiryGuardRegisters(t *testing.T) {
	code, err := NewExpiry(time.Now().Add(time.Hour)).Code()
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}

	// The guard must hook into the core routine's guard list and
	// reject with the core's error type; it declares nothing the
	// core depends on.
	if !strings.Contains(code, "_GUARDS.append(_expiry_guard)") {
		t.Errorf("guard is not registered:\n%s", code)
	}
	if !strings.Contains(code, "raise DecryptionError") {
		t.Errorf("guard does not raise DecryptionError:\n%s", code)
	}
	if !strings.Contains(code, "if time.time() >= _EXPIRY_EPOCH") {
		t.Errorf("guard does not compare against the instant:\n%s", code)
	}
}

func TestExpiryInstantNormalizedToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	instant := time.Date(2027, 1, 1, 5, 0, 0, 0, loc)

	e := NewExpiry(instant)
	if e.Instant().Location() != time.UTC {
		t.Error("instant not normalized to UTC")
	}
	if !e.Instant().Equal(instant) {
		t.Error("normalization changed the instant")
	}
}
