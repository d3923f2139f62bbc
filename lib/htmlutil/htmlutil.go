package htmlutil

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText returns the text of node with non-printable characters removed
// and runs of whitespace collapsed into a single space.
func CleanText(node *html.Node) string {
	text := removeNonPrintable(GetText(node))
	text = strings.TrimSpace(text)
	return innerWhitespace.ReplaceAllString(text, " ")
}

// Texts returns CleanText for every node in sel, skipping empty ones.
func Texts(sel *goquery.Selection) []string {
	var out []string
	for _, n := range sel.Nodes {
		text := CleanText(n)
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

// CssString quotes s as a CSS string literal.
func CssString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		// line breaks cannot appear raw inside a CSS string
		case '\n':
			b.WriteString(`\a `)
		case '\r':
			b.WriteString(`\d `)
		case '\f':
			b.WriteString(`\c `)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// FormInputSelector builds the selector for an input named `field` inside
// the form whose action attribute is exactly `action`.
func FormInputSelector(action, field string) string {
	return fmt.Sprintf(`form[action=%s] input[name=%s]`, CssString(action), CssString(field))
}

// FormInputValue returns the value of the first matching input, and whether
// a non-empty value was found.
func FormInputValue(doc *goquery.Document, action, field string) (string, bool) {
	value := strings.TrimSpace(
		doc.Find(FormInputSelector(action, field)).First().AttrOr("value", ""),
	)
	return value, value != ""
}
