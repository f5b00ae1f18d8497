package preprocess

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var (
	reSpaces   = regexp.MustCompile(`[ \t]+`)
	reNewlines = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalises raw knowledge-base text before chunking: strips
// control characters, fixes common ligature/OCR artifacts, and collapses
// runs of whitespace.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	// remove control chars except newline
	b := strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	fixes := map[string]string{
		"ﬁ": "fi", "ﬂ": "fl",
		"—": "-", "–": "-",
		"·": ".", "•": "-",
	}
	for k, v := range fixes {
		b = strings.ReplaceAll(b, k, v)
	}

	b = reSpaces.ReplaceAllString(b, " ")
	b = reNewlines.ReplaceAllString(b, "\n\n")

	return strings.TrimSpace(b)
}

// HTMLToText extracts readable content from HTML, preserving headings as
// markdown so the section chunker can pick up document structure.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	var out []string
	doc.Find("h1,h2,h3,h4,p,li,pre,code").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1":
			out = append(out, "# "+text)
		case "h2":
			out = append(out, "## "+text)
		case "h3":
			out = append(out, "### "+text)
		case "h4":
			out = append(out, "#### "+text)
		case "li":
			out = append(out, "- "+text)
		case "pre", "code":
			out = append(out, "```\n"+text+"\n```")
		default:
			out = append(out, text)
		}
	})
	return CleanText(strings.Join(out, "\n\n")), nil
}
