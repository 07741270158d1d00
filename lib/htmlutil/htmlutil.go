package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// GetText concatenates every text node under `node`, like DOM textContent.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer, false)
	return buffer.String()
}

// GetInnerText approximates DOM innerText on a static document: script and
// style contents are dropped, <br> and block elements break lines and runs of
// inline whitespace collapse to a single space.
func GetInnerText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer, true)

	lines := strings.Split(buffer.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = removeNonPrintable(line)
		line = innerWhitespace.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Tr: true, atom.Ul: true,
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer, rendered bool) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if rendered && node.Type == html.ElementNode {
		switch node.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		case atom.Br:
			buffer.WriteByte('\n')
			return
		case atom.Td, atom.Th:
			buffer.WriteByte('\t')
		}
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer, rendered)
		child = child.NextSibling
	}
	if rendered && node.Type == html.ElementNode && blockElements[node.DataAtom] {
		buffer.WriteByte('\n')
	}
}

// CountElementChildren counts the direct children of `node` that are elements,
// like DOM `children.length`.
func CountElementChildren(node *html.Node) int {
	if node == nil {
		return 0
	}
	count := 0
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			count++
		}
	}
	return count
}

var innerWhitespace = regexp.MustCompile(`\s\s+|\t`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || c == '\t' {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}
