// ABOUTME: Tests for version constants
// ABOUTME: Ensures the banner and handshake fields are populated
package version

import (
	"strings"
	"testing"
)

func TestConstantsDefined(t *testing.T) {
	tests := map[string]string{
		"Version":      Version,
		"Product":      Product,
		"Manufacturer": Manufacturer,
	}
	for name, v := range tests {
		if v == "" || len(v) > 100 {
			t.Errorf("%s has an unreasonable value %q", name, v)
		}
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Product) || !strings.HasSuffix(s, Version) {
		t.Errorf("unexpected banner %q", s)
	}
}
