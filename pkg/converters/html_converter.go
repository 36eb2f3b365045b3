package converters

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// OutputConverter turns model output into markup that is safe to embed.
type OutputConverter interface {
	Convert(raw string) template.HTML
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*[ \t]*\r?\n(.*?)\r?\n?```$")

// HTMLConverter strips code fences, renders markdown when the model ignored
// the HTML instruction, and sanitizes the result.
type HTMLConverter struct {
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
}

func NewHTMLConverter() *HTMLConverter {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()
	policy.AllowAttrs("scope").OnElements("th", "td")

	return &HTMLConverter{
		policy:   policy,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (c *HTMLConverter) Convert(raw string) template.HTML {
	body := StripFence(raw)
	if body == "" {
		return ""
	}
	if !ContainsElements(body) {
		var buf bytes.Buffer
		if err := c.markdown.Convert([]byte(body), &buf); err == nil {
			body = buf.String()
		} else {
			body = "<p>" + html.EscapeString(body) + "</p>"
		}
	}
	return template.HTML(strings.TrimSpace(c.policy.Sanitize(body)))
}

// StripFence removes one markdown code fence wrapping the whole string.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ContainsElements reports whether s parses to at least one HTML element.
func ContainsElements(s string) bool {
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return false
	}
	for _, n := range nodes {
		if hasElement(n) {
			return true
		}
	}
	return false
}

func hasElement(n *html.Node) bool {
	if n.Type == html.ElementNode {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasElement(c) {
			return true
		}
	}
	return false
}
