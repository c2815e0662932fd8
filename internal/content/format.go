package content

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

// Telegram accepts only a small HTML tag set in ParseMode=HTML; anything else
// makes sendMessage reject the whole post.
var allowedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"a": true, "code": true, "pre": true,
}

var (
	tagRe     = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	tagNameRe = regexp.MustCompile(`^</?([a-zA-Z][a-zA-Z0-9]*)`)
	headRe    = regexp.MustCompile(`<h[1-6][^>]*>`)
	headEndRe = regexp.MustCompile(`</h[1-6]>`)
	manyNLRe  = regexp.MustCompile(`\n{3,}`)
)

// RenderHTML converts the model's markdown output into Telegram-safe HTML:
// goldmark renders the markdown, then the result is flattened to the tag set
// Telegram supports (block structure becomes line breaks).
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return sanitizeHTML(buf.String()), nil
}

func sanitizeHTML(s string) string {
	// Inline-level renames first.
	s = strings.NewReplacer(
		"<strong>", "<b>", "</strong>", "</b>",
		"<em>", "<i>", "</em>", "</i>",
		"<del>", "<s>", "</del>", "</s>",
	).Replace(s)

	// Headings become bold lines.
	s = headRe.ReplaceAllString(s, "<b>")
	s = headEndRe.ReplaceAllString(s, "</b>\n")

	// Block structure becomes plain line breaks / bullets.
	s = strings.NewReplacer(
		"<p>", "", "</p>", "\n\n",
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"<li>", "• ", "</li>", "\n",
		"<ul>", "", "</ul>", "\n",
		"<ol>", "", "</ol>", "\n",
		"<blockquote>", "", "</blockquote>", "\n",
		"<hr>", "\n", "<hr/>", "\n", "<hr />", "\n",
	).Replace(s)

	// Drop any tag that is not in the Telegram set. <a href> survives as-is.
	s = tagRe.ReplaceAllStringFunc(s, func(tag string) string {
		m := tagNameRe.FindStringSubmatch(tag)
		if m == nil {
			return ""
		}
		if allowedTags[strings.ToLower(m[1])] {
			return tag
		}
		return ""
	})

	s = manyNLRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
