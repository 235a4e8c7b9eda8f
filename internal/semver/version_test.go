package semver

import "testing"

func TestParseVersion_LeadingV(t *testing.T) {
	v, err := ParseVersion("v1.2.3")
	if err != nil {
		t.Fatalf("ParseVersion error: %v", err)
	}
	if v.String() != "1.2.3" {
		t.Errorf("String() = %q, want %q", v.String(), "1.2.3")
	}
}

func TestVersion_Compare(t *testing.T) {
	a := MustParseVersion("1.2.3")
	b := MustParseVersion("1.2.4")
	if !a.LessThan(b) {
		t.Error("expected 1.2.3 < 1.2.4")
	}
	if !b.GreaterThan(a) {
		t.Error("expected 1.2.4 > 1.2.3")
	}
	if !a.Equal(MustParseVersion("1.2.3")) {
		t.Error("expected 1.2.3 == 1.2.3")
	}
}

func TestParseVersion_Invalid(t *testing.T) {
	if _, err := ParseVersion("not-a-version"); err == nil {
		t.Fatal("expected error parsing invalid version")
	}
}
