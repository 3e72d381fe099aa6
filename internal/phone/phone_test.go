package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"5511988887777", "11988887777"},  // country code stripped
		{"11988887777", "11988887777"},    // national number kept
		{"1138887777", "1138887777"},      // 10-digit landline kept
		{"55998887777", "55998887777"},    // area code 55, not a country code
		{"+55 (11) 98888-7777", "11988887777"},
		{"(11) 3888-7777", "1138887777"},
		{"", ""},
		{"abc", ""},
	}

	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"5511988887777", "11988887777", "55998887777", "+55 11 98888-7777", "",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestVariants(t *testing.T) {
	got := Variants("11988887777")
	if len(got) != 2 || got[0] != "11988887777" || got[1] != "5511988887777" {
		t.Errorf("Variants(national) = %v", got)
	}

	got = Variants("5511988887777")
	if len(got) != 2 || got[0] != "11988887777" || got[1] != "5511988887777" {
		t.Errorf("Variants(international) = %v", got)
	}

	if got = Variants(""); got != nil {
		t.Errorf("Variants(empty) = %v, want nil", got)
	}
}

func TestFormatOutbound(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"11988887777", "5511988887777"},
		{"1138887777", "551138887777"},
		{"5511988887777", "5511988887777"}, // already has country code
		{"(11) 98888-7777", "5511988887777"},
	}

	for _, c := range cases {
		if got := FormatOutbound(c.in); got != c.want {
			t.Errorf("FormatOutbound(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
