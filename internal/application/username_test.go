package application

import "testing"

func TestDeriveUsername(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"ana.horvat@example.com":       "Ana Horvat",
		"ANA.MARIA.HORVAT@example.com": "Ana Maria Horvat",
		"marko@example.com":            "Marko",
		"..ivo..babic.@example.com":    "Ivo Babic",
		"željko.šarić@example.hr":      "Željko Šarić",
		"@example.com":                 "",
	}
	for email, want := range cases {
		if got := DeriveUsername(email); got != want {
			t.Errorf("DeriveUsername(%q) = %q, want %q", email, got, want)
		}
	}
}
