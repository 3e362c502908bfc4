package phone

import (
	"errors"
	"testing"

	"github.com/satriahrh/lifeline/domain/entities"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "ten digits", raw: "2487563656", want: "+12487563656"},
		{name: "eleven digits with country code", raw: "12487563656", want: "+12487563656"},
		{name: "international with plus", raw: "+44 123 456 7890", want: "+441234567890"},
		{name: "formatted us number", raw: "(248) 756-3656", want: "+12487563656"},
		{name: "leading space before plus", raw: "  +1 248 756 3656", want: "+12487563656"},
		{name: "too short", raw: "12345", wantErr: true},
		{name: "eleven digits wrong prefix", raw: "22487563656", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "plus only", raw: "+", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, entities.ErrInvalidPhoneNumber) {
					t.Errorf("Normalize(%q) error = %v, want ErrInvalidPhoneNumber", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeAll(t *testing.T) {
	got := NormalizeAll([]string{"2487563656", "bogus", "+1 (248) 756-3656", "+44 123 456 7890", ""})
	want := []string{"+12487563656", "+441234567890"}

	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
