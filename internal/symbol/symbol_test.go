package symbol

import "testing"

func TestInternShortRoundTrips(t *testing.T) {
	cases := []string{"x", "fib", "tak", "a", "select", "longname"}
	for _, name := range cases {
		s := Intern(name)
		if !s.IsShort() {
			t.Fatalf("Intern(%q): expected short symbol", name)
		}
		if got := s.Short(); got != name {
			t.Errorf("Intern(%q).Short() = %q, want %q", name, got, name)
		}
		if got := s.String(); got != name {
			t.Errorf("Intern(%q).String() = %q, want %q", name, got, name)
		}
	}
}

func TestInternLongIsHashed(t *testing.T) {
	s := Intern("this_identifier_is_definitely_longer_than_eight_bytes")
	if s.IsShort() {
		t.Fatalf("expected long symbol to be hashed, got short")
	}
}

func TestInternEquality(t *testing.T) {
	if Intern("select") != Intern("select") {
		t.Errorf("Intern should be deterministic for equal inputs")
	}
	if Intern("select") == Intern("tak") {
		t.Errorf("distinct short names must not collide")
	}
	long1 := "an_identifier_well_past_eight_bytes_one"
	long2 := "an_identifier_well_past_eight_bytes_two"
	if Intern(long1) == Intern(long2) {
		t.Errorf("distinct long names should not collide under fnv in this test corpus")
	}
}

func TestShortAndHashedSpacesDisjoint(t *testing.T) {
	short := Intern("abc")
	long := Intern("a_name_long_enough_to_be_hashed_instead")
	if short.IsShort() == long.IsShort() {
		t.Fatalf("short and hashed symbols must be distinguishable")
	}
	if uint64(short)&highBit != 0 {
		t.Errorf("short symbol must have high bit clear")
	}
	if uint64(long)&highBit == 0 {
		t.Errorf("hashed symbol must have high bit set")
	}
}
