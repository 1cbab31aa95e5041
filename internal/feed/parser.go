package feed

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxTitleLength bounds ExtractTitle output in runes.
	MaxTitleLength = 100
	// NoTitle is returned by ExtractTitle for empty input.
	NoTitle = "Без заголовка"
	// UnknownDate is returned by FormatRelativeDate for a zero time.
	UnknownDate = "Неизвестно"

	ellipsis = "..."
)

var (
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	htmlEntityRegex  = regexp.MustCompile(`&[a-zA-Z0-9#]+;`)
	sentenceEndRegex = regexp.MustCompile(`[.!?]\s+`)
	viewsRegex       = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*([KMкм]?)`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&quot;", `"`,
		"&#34;", `"`,
		"&#39;", "'",
		"&apos;", "'",
		"&laquo;", "«",
		"&raquo;", "»",
		"&mdash;", "—",
		"&ndash;", "–",
		"&hellip;", "…",
		"&lt;", " ",
		"&gt;", " ",
	)
)

// IsTargetLanguage reports whether text is predominantly Cyrillic: at least one
// Cyrillic letter and a Cyrillic share above 0.3 of all Cyrillic and Latin letters.
func IsTargetLanguage(text string) bool {
	var cyrillic, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r) && unicode.IsLetter(r):
			cyrillic++
		case unicode.Is(unicode.Latin, r) && unicode.IsLetter(r):
			latin++
		}
	}
	if cyrillic == 0 {
		return false
	}
	return float64(cyrillic)/float64(cyrillic+latin) > 0.3
}

// ExtractTitle returns the first sentence of text, at most MaxTitleLength runes.
func ExtractTitle(text string) string {
	text = collapseSpaces(text)
	if text == "" {
		return NoTitle
	}

	title := text
	if loc := sentenceEndRegex.FindStringIndex(text); loc != nil && loc[0] > 0 {
		title = text[:loc[0]]
	}

	return truncate(strings.TrimSpace(title), MaxTitleLength)
}

// CleanText strips markup and entities, collapses whitespace and bounds the
// result to limit runes. A non-positive limit disables truncation.
func CleanText(text string, limit int) string {
	text = entityReplacer.Replace(text)
	text = htmlTagRegex.ReplaceAllString(text, " ")
	text = htmlEntityRegex.ReplaceAllString(text, " ")
	text = collapseSpaces(text)
	if limit <= 0 {
		return text
	}
	return truncate(text, limit)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return strings.TrimRightFunc(string([]rune(s)[:limit]), unicode.IsSpace)
	}
	cut := strings.TrimRightFunc(string([]rune(s)[:limit-len(ellipsis)]), unicode.IsSpace)
	return cut + ellipsis
}

// FormatRelativeDate renders t relative to now the way the feed UI shows it.
func FormatRelativeDate(t, now time.Time) string {
	if t.IsZero() {
		return UnknownDate
	}

	diff := now.Sub(t)
	if diff < 0 {
		diff = 0
	}

	switch minutes := int(diff.Minutes()); {
	case minutes < 1:
		return "только что"
	case minutes < 60:
		return fmt.Sprintf("%d мин назад", minutes)
	}

	hours := int(diff.Hours())
	if hours < 24 {
		return fmt.Sprintf("%d ч назад", hours)
	}

	switch days := hours / 24; {
	case days == 1:
		return "вчера"
	case days < 7:
		return fmt.Sprintf("%d дн назад", days)
	}

	return t.In(now.Location()).Format("02.01.2006")
}

var timestampLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts the common feed and Telegram date forms and unix seconds.
// Unparsable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC()
	}
	return time.Time{}
}

// ParseViews reads a view counter such as "1.2K" or "3,4М".
func ParseViews(text string) (int, bool) {
	m := viewsRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	n, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}

	switch strings.ToLower(m[2]) {
	case "k", "к":
		n *= 1e3
	case "m", "м":
		n *= 1e6
	}
	return int(n), true
}

// View count ranges used when a source exposes no counter.
const (
	RSSViewsMin      = 100
	RSSViewsMax      = 900
	TelegramViewsMin = 100
	TelegramViewsMax = 600
)

// EstimatedViews returns a placeholder counter in [min, max).
func EstimatedViews(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	if rng == nil {
		return min + rand.Intn(max-min)
	}
	return min + rng.Intn(max-min)
}
