package sanitize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	tagExpr        = regexp.MustCompile(`<\s*/?\s*[a-zA-Z][^>]*>`)
	whitespaceExpr = regexp.MustCompile(`[ \t]+`)
)

// Text reduces rich-text authored content to plain text so markup cannot hide
// prohibited phrases from the rule scan. Plain-text input passes through
// untouched apart from whitespace normalization.
func Text(raw string) string {
	if !tagExpr.MatchString(raw) {
		return normalize(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		// Unparseable markup: fall back to stripping tags textually.
		return normalize(tagExpr.ReplaceAllString(raw, " "))
	}

	doc.Find("script, style").Remove()

	var b strings.Builder
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if strings.TrimSpace(text) == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	})

	if b.Len() == 0 {
		return normalize(doc.Text())
	}
	return normalize(b.String())
}

func normalize(s string) string {
	s = whitespaceExpr.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
