package render

import "strings"

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape replaces &, < and > with their entities. No other character is altered,
// so quotes and backticks survive for the markdown passes in Render.
func Escape(text string) string {
	return escaper.Replace(text)
}

// Markup escapes raw text and expands the supported markdown subset.
// This is the only safe way to turn assistant or user text into markup.
func Markup(text string) string {
	return Render(Escape(text))
}
