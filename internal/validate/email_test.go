package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{"  Ana@Campus.EDU ", "ana@campus.edu", nil},
		{"first.last+tag@mail.school.edu", "first.last+tag@mail.school.edu", nil},
		{"", "", ErrEmpty},
		{"no-at-sign", "", ErrInvalidEmail},
		{"a@localhost", "", ErrInvalidEmail},
		{"a@@b.com", "", ErrInvalidEmail},
		{strings.Repeat("a", 65) + "@b.com", "", ErrStringTooLong},
	}
	for _, tt := range tests {
		got, err := Email(tt.input)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Email(%q) err = %v, want %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
