package textutil

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Blue Glazed Mug":     "blue-glazed-mug",
		"  Café  Crème!  ":    "cafe-creme",
		"Tea -- Cups & Bowls": "tea-cups-bowls",
		"陶器 Mug":              "陶器-mug",
		"---":                 "",
		"2024 Collection":     "2024-collection",
	}
	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSlugifyTruncates(t *testing.T) {
	got := Slugify(strings.Repeat("ab ", 60))
	if len(got) > maxSlugLength || strings.HasSuffix(got, "-") {
		t.Fatalf("unexpected slug %q (%d)", got, len(got))
	}
}

func TestIsSlug(t *testing.T) {
	if !IsSlug("blue-mug") {
		t.Fatal("expected blue-mug to be a slug")
	}
	for _, value := range []string{"", "Blue", "blue mug", "-blue"} {
		if IsSlug(value) {
			t.Fatalf("did not expect %q to be a slug", value)
		}
	}
}

func TestSanitizeHTML(t *testing.T) {
	got := SanitizeHTML(`<p onclick="x()">Hand <b>thrown</b></p><script>alert(1)</script>`)
	if got != "<p>Hand <b>thrown</b></p>" {
		t.Fatalf("unexpected sanitized html %q", got)
	}
	if SanitizeHTML("  ") != "" {
		t.Fatal("expected blank to stay blank")
	}
}
