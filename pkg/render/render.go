// Package render turns chat text into a deliberately small markup subset:
// fenced code blocks, inline code spans and flat bullet lists.
//
// Render expects text that already went through Escape. Everything it does not
// recognise is passed through as escaped text.
package render

import "strings"

const fence = "```"

// piece is a run of output text. Opaque pieces are finished fenced blocks and
// are never split into lines or scanned again.
type piece struct {
	text   string
	opaque bool
}

// line is a sequence of pieces between newlines found in non-opaque text.
type line struct {
	parts   []piece
	newline bool
}

// Render expands the supported constructs in this order:
//  1. fenced code blocks (```...```) become <pre><code>, contents untouched
//  2. inline `code` spans outside fences become <code>
//  3. lines starting with "-" or "*" plus whitespace become list items, and
//     consecutive items share one <ul>
func Render(escaped string) string {
	pieces := splitFences(escaped)
	for i := range pieces {
		if !pieces[i].opaque {
			pieces[i].text = inlineCode(pieces[i].text)
		}
	}
	return renderLists(splitLines(pieces))
}

// splitFences pairs triple backticks left to right. An opener without a
// closing fence stays literal text.
func splitFences(s string) []piece {
	var pieces []piece
	for {
		start := strings.Index(s, fence)
		if start < 0 {
			break
		}
		end := strings.Index(s[start+len(fence):], fence)
		if end < 0 {
			break
		}
		end += start + len(fence)

		if start > 0 {
			pieces = append(pieces, piece{text: s[:start]})
		}
		pieces = append(pieces, piece{
			text:   "<pre><code>" + s[start+len(fence):end] + "</code></pre>",
			opaque: true,
		})
		s = s[end+len(fence):]
	}
	if s != "" {
		pieces = append(pieces, piece{text: s})
	}
	return pieces
}

// inlineCode wraps `spans` with at least one character between the backticks.
// A backtick directly followed by another one is literal.
func inlineCode(s string) string {
	var b strings.Builder
	for {
		open := strings.IndexByte(s, '`')
		if open < 0 {
			break
		}
		rest := s[open+1:]
		end := strings.IndexByte(rest, '`')
		if end < 0 {
			break
		}
		if end == 0 {
			b.WriteString(s[:open+1])
			s = rest
			continue
		}
		b.WriteString(s[:open])
		b.WriteString("<code>")
		b.WriteString(rest[:end])
		b.WriteString("</code>")
		s = rest[end+1:]
	}
	b.WriteString(s)
	return b.String()
}

func splitLines(pieces []piece) []line {
	lines := []line{{}}
	for _, p := range pieces {
		if p.opaque {
			cur := &lines[len(lines)-1]
			cur.parts = append(cur.parts, p)
			continue
		}
		for k, seg := range strings.Split(p.text, "\n") {
			if k > 0 {
				lines[len(lines)-1].newline = true
				lines = append(lines, line{})
			}
			if seg != "" {
				cur := &lines[len(lines)-1]
				cur.parts = append(cur.parts, piece{text: seg})
			}
		}
	}
	return lines
}

func renderLists(lines []line) string {
	var b strings.Builder
	for i := 0; i < len(lines); i++ {
		first, ok := listItem(lines[i])
		if !ok {
			writeLine(&b, lines[i])
			continue
		}

		// Collect the run: items, with whitespace-only lines allowed between them.
		items := []string{first}
		last := i
		for k := i + 1; k < len(lines); k++ {
			if item, ok := listItem(lines[k]); ok {
				items = append(items, item)
				last = k
				continue
			}
			if !isBlank(lines[k]) {
				break
			}
		}

		b.WriteString("<ul>")
		for _, item := range items {
			b.WriteString("<li>")
			b.WriteString(item)
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
		if lines[last].newline {
			b.WriteByte('\n')
		}
		i = last
	}
	return b.String()
}

func writeLine(b *strings.Builder, l line) {
	for _, p := range l.parts {
		b.WriteString(p.text)
	}
	if l.newline {
		b.WriteByte('\n')
	}
}

// listItem reports whether the line starts with optional blanks, a "-" or "*"
// marker and at least one blank, and returns the rest of the line.
func listItem(l line) (string, bool) {
	if len(l.parts) == 0 || l.parts[0].opaque {
		return "", false
	}
	text := strings.TrimLeft(l.parts[0].text, " \t")
	if len(text) < 2 || (text[0] != '-' && text[0] != '*') {
		return "", false
	}
	if text[1] != ' ' && text[1] != '\t' {
		return "", false
	}

	var b strings.Builder
	b.WriteString(strings.TrimLeft(text[1:], " \t"))
	for _, p := range l.parts[1:] {
		b.WriteString(p.text)
	}
	return strings.TrimSuffix(b.String(), "\r"), true
}

func isBlank(l line) bool {
	for _, p := range l.parts {
		if p.opaque || strings.TrimSpace(p.text) != "" {
			return false
		}
	}
	return true
}
