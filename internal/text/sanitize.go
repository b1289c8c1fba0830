// Package text prepares model-generated digests for delivery to Telegram.
// Telegram's HTML parse mode rejects messages with unsupported or unclosed
// tags, and models routinely produce both.
package text

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// allowedTags is the set of HTML tags Telegram accepts in HTML parse mode
// that the summarization prompt permits the model to use.
var allowedTags = map[string]bool{
	"b":    true,
	"i":    true,
	"a":    true,
	"code": true,
	"pre":  true,
	"s":    true,
	"u":    true,
}

// FixHTML repairs model-generated HTML for Telegram: tags outside the
// allow-list are unwrapped (their content kept), unclosed allowed tags are
// closed, and stray angle brackets in text are escaped. The result is safe
// to send with HTML parse mode as long as the input was at least vaguely
// HTML-shaped.
func FixHTML(s string) string {
	ctxNode := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	}

	nodes, err := html.ParseFragment(strings.NewReader(s), ctxNode)
	if err != nil {
		// Parsing virtually never fails for text input; escape everything
		// rather than risk a rejected send.
		return html.EscapeString(s)
	}

	var b strings.Builder
	for _, n := range nodes {
		renderNode(&b, n)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
	case html.ElementNode:
		if !allowedTags[n.Data] {
			// Unwrap: keep the children, drop the tag itself.
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				renderNode(b, c)
			}
			return
		}

		b.WriteString("<")
		b.WriteString(n.Data)
		for _, a := range n.Attr {
			b.WriteString(" ")
			b.WriteString(a.Key)
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(a.Val))
			b.WriteString(`"`)
		}
		b.WriteString(">")
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderNode(b, c)
		}
		b.WriteString("</")
		b.WriteString(n.Data)
		b.WriteString(">")
	default:
		// Comments and doctypes have no place in a chat message.
	}
}

// Truncate limits s to max runes. Telegram enforces message length in
// characters, so byte-based slicing would split multibyte runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
