package utils

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"My First Post!!", "my-first-post"},
		{"Hello, World", "hello-world"},
		{"  много   пробелов  ", ""},
		{"Go 1.23 Release Notes", "go-123-release-notes"},
		{"UPPER case", "upper-case"},
		{"", ""},
		{"---", ""},
		{"C++ vs Go: 2024", "c-vs-go-2024"},
	}

	for _, c := range cases {
		if got := Slugify(c.title); got != c.want {
			t.Errorf("Slugify(%q) = %q, ожидалось %q", c.title, got, c.want)
		}
	}
}

// Один и тот же заголовок должен детерминированно давать один слаг.
func TestSlugify_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := Slugify("Stable Title 42"); got != "stable-title-42" {
			t.Fatalf("недетерминированный слаг: %q", got)
		}
	}
}
