package content

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Sanitizer cleans user supplied text. It is safe for concurrent use.
type Sanitizer struct {
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
	md     goldmark.Markdown
}

func NewSanitizer() *Sanitizer {
	ugc := bluemonday.UGCPolicy()
	ugc.RequireNoFollowOnLinks(true)
	ugc.AddTargetBlankToFullyQualifiedLinks(true)
	ugc.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")

	return &Sanitizer{
		strict: bluemonday.StrictPolicy(),
		ugc:    ugc,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Plain strips every tag. Entities are decoded again so that stored text is
// raw and escaping happens once, at render time.
func (s *Sanitizer) Plain(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(in)))
}

func (s *Sanitizer) Rich(in string) string {
	return strings.TrimSpace(s.ugc.Sanitize(in))
}

// Markdown renders GitHub flavoured markdown. Raw HTML in the source is
// dropped by goldmark and the result is passed through the UGC policy.
func (s *Sanitizer) Markdown(in string) (string, error) {
	if strings.TrimSpace(in) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(in), &buf); err != nil {
		return "", err
	}
	return s.ugc.SanitizeReader(&buf).String(), nil
}
