package validators

import "testing"

func strPtr(s string) *string { return &s }

func TestFreeText(t *testing.T) {
	cases := []struct {
		name string
		in   *string
		max  int
		want *string
	}{
		{"nil stays nil", nil, 10, nil},
		{"blank becomes nil", strPtr("  \t "), 10, nil},
		{"trims and strips controls", strPtr("  leave at\x00 gate\n "), 0, strPtr("leave at gate")},
		{"keeps inner newline", strPtr("line one\nline two"), 0, strPtr("line one\nline two")},
		{"cuts on rune boundary", strPtr("ñandú farm"), 5, strPtr("ñandú")},
	}
	for _, tc := range cases {
		got := FreeText(tc.in, tc.max)
		switch {
		case tc.want == nil && got != nil:
			t.Fatalf("%s: expected nil, got %q", tc.name, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Fatalf("%s: expected %q, got %v", tc.name, *tc.want, got)
		}
	}
}
