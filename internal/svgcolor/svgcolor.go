// Package svgcolor rewrites fill colors in SVG markup.
package svgcolor

import (
	"regexp"
	"strings"
)

var (
	hexFillRe     = regexp.MustCompile(`(\s)fill="#[0-9a-fA-F]{3,8}"`)
	currentFillRe = regexp.MustCompile(`(\s)fill="currentColor"`)
	pathTagRe     = regexp.MustCompile(`<path(\s[^>]*?)?(/?)>`)
	fillAttrRe    = regexp.MustCompile(`\sfill\s*=`)
)

// Apply points every fill reference in svg at color.
//
// Hex fills and currentColor fills are replaced in place, then every <path>
// element without a fill attribute gets one. The color is inserted verbatim.
// Markup that does not match is passed through untouched.
func Apply(svg, color string) string {
	fill := `fill="` + color + `"`

	out := replacePrefixed(hexFillRe, svg, fill)
	out = replacePrefixed(currentFillRe, out, fill)

	return pathTagRe.ReplaceAllStringFunc(out, func(tag string) string {
		m := pathTagRe.FindStringSubmatch(tag)
		attrs, closer := m[1], m[2]
		if fillAttrRe.MatchString(attrs) {
			return tag
		}
		// "<path d='x' />" keeps its spacing before the slash.
		trimmed := strings.TrimRight(attrs, " \t\r\n")
		trailing := attrs[len(trimmed):]
		return "<path" + trimmed + " " + fill + trailing + closer + ">"
	})
}

// replacePrefixed swaps each match for fill while keeping the captured
// leading whitespace. A func replacement keeps "$" in colors literal.
func replacePrefixed(re *regexp.Regexp, s, fill string) string {
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return match[:1] + fill
	})
}
