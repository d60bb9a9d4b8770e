package directory

import (
	"context"
	"testing"
)

func TestStaticLookup(t *testing.T) {
	d := NewStatic([]string{"admin", "dean"})

	tests := []struct {
		username string
		admin    bool
	}{
		{"admin", true},
		{"dean", true},
		{"bob", false},
		{"", false},
	}

	for _, tt := range tests {
		id, err := d.Lookup(context.Background(), tt.username)
		if err != nil {
			t.Fatalf("Lookup(%q) failed: %v", tt.username, err)
		}
		if id.Username != tt.username {
			t.Errorf("Lookup(%q) username = %q", tt.username, id.Username)
		}
		if id.Admin != tt.admin {
			t.Errorf("Lookup(%q) admin = %v, want %v", tt.username, id.Admin, tt.admin)
		}
	}
}

func TestStaticIgnoresEmptyAdminEntries(t *testing.T) {
	d := NewStatic([]string{""})

	id, err := d.Lookup(context.Background(), "")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if id.Admin {
		t.Error("empty username must never carry the admin claim")
	}
}
