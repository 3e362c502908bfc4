package protocols

import (
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	want := []string{"BURN", "CHOKING", "CPR_NEEDED", "SEIZURE", "SEVERE_BLEEDING"}
	got := r.Keys()
	if len(got) != len(want) {
		t.Fatalf("Expected keys %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	choking, ok := r.Lookup("CHOKING")
	if !ok {
		t.Fatal("Expected CHOKING protocol")
	}
	if choking.Name != "Choking First Aid (Conscious Adult)" {
		t.Errorf("Unexpected name %q", choking.Name)
	}
	if len(choking.Steps) != 9 || len(choking.WarningSigns) != 4 {
		t.Errorf("Unexpected step/sign counts %d/%d", len(choking.Steps), len(choking.WarningSigns))
	}
}

func TestLookupRejectsUnknown(t *testing.T) {
	r := Default()
	for _, label := range []string{"", "unknown", "Unknown", "ALIEN_ABDUCTION"} {
		if _, ok := r.Lookup(label); ok {
			t.Errorf("Lookup(%q) should not match", label)
		}
	}
}

func TestAssets(t *testing.T) {
	r := Default()

	url, ok := r.AssetURL("cpr_compressions")
	if !ok || url == "" {
		t.Error("Expected cpr_compressions asset")
	}
	if _, ok := r.AssetURL("missing"); ok {
		t.Error("Unexpected asset for unknown key")
	}

	assets := r.Assets()
	if len(assets) != 2 || assets[0].Key != "cpr_compressions" || assets[0].Hint == "" {
		t.Errorf("Unexpected assets %+v", assets)
	}
}

func TestFallback(t *testing.T) {
	r := Default()

	if p := r.Fallback(FallbackGeneral); p.Name != "General Guidance" || len(p.Steps) != 3 {
		t.Errorf("Unexpected general fallback %+v", p)
	}
	if p := r.Fallback(FallbackUnavailable); p.Name != "Guidance Unavailable" || len(p.Steps) != 1 {
		t.Errorf("Unexpected unavailable fallback %+v", p)
	}
	if p := r.Fallback("nope"); len(p.Steps) == 0 {
		t.Error("Unknown fallback should still carry a step")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	if _, err := Parse([]byte("protocols:\n  - key: X\n")); err == nil {
		t.Error("Expected error for protocol without name and steps")
	}
	if _, err := Parse([]byte("protocols: [")); err == nil {
		t.Error("Expected YAML error")
	}
}
