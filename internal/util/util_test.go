package util

import "testing"

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"ABCD-EFGH-JKLM-NPQR": "ABCD...NPQR",
		"abcdef":              "ab...ef",
		"abc":                 "a...c",
		"ab":                  "ab",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Fatalf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskSensitiveQuery(t *testing.T) {
	got := MaskSensitiveQuery("page=2&code=ABCD-EFGH-JKLM-NPQR&access_token=abcdefghijkl")
	want := "page=2&code=ABCD...NPQR&access_token=abcd...ijkl"
	if got != want {
		t.Fatalf("MaskSensitiveQuery = %q, want %q", got, want)
	}
	if got := MaskSensitiveQuery("status=unused"); got != "status=unused" {
		t.Fatalf("expected untouched query, got %q", got)
	}
}
