package utils

import "strings"

// Slugify строит URL-слаг из заголовка: нижний регистр, всё кроме
// латинских букв, цифр и пробелов отбрасывается, пробелы схлопываются
// в один дефис. Один и тот же заголовок всегда даёт один и тот же слаг.
func Slugify(title string) string {
	title = strings.ToLower(title)

	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n':
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), "-")
}
