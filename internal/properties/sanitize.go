package properties

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var spaceRun = regexp.MustCompile(`[ \t]+`)

// plainText strips markup from user-supplied HTML, keeping paragraph breaks
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style, iframe, object").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
