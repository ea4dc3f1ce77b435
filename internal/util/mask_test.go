package util

import "testing"

func TestMaskUsername(t *testing.T) {
	cases := []struct{ in, want string }{
		{"mgarcia@salud.cdmx.gob.mx", "m…@s….cdmx.gob.mx"},
		{"RLOPEZ", "r…z"},
		{"ab", "***"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := MaskUsername(tc.in); got != tc.want {
			t.Fatalf("MaskUsername(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
