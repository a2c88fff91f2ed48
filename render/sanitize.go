package render

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// UIMarkerAttr marks elements injected by the SDK itself (the badge
// fragment, dialogs). The sanitizer drops them so screenshots show only the
// host page.
const UIMarkerAttr = "data-snag-ui"

// Sanitize prepares captured markup for rasterization: elements carrying
// the data-snag-ui attribute are removed, and modern color function
// syntaxes in inline styles and <style> blocks are rewritten to rgb()
// equivalents that conservative renderers accept. Sanitization never
// fails; markup that cannot be parsed is returned unchanged.
func Sanitize(markup string) string {
	if markup == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return markup
	}
	sanitizeNode(doc)
	var b bytes.Buffer
	if err := html.Render(&b, doc); err != nil {
		return markup
	}
	return b.String()
}

func sanitizeNode(n *html.Node) {
	var next *html.Node
	for child := n.FirstChild; child != nil; child = next {
		next = child.NextSibling
		if child.Type == html.ElementNode && hasAttr(child, UIMarkerAttr) {
			n.RemoveChild(child)
			continue
		}
		sanitizeNode(child)
	}

	if n.Type != html.ElementNode {
		return
	}
	for i, a := range n.Attr {
		if a.Key == "style" {
			n.Attr[i].Val = RewriteColors(a.Val)
		}
	}
	if n.Data == "style" {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				c.Data = RewriteColors(c.Data)
			}
		}
	}
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// colorFns are the function syntaxes rewritten to rgb(). Longer names come
// first so the scanner can rely on the word-boundary check alone.
var colorFns = []string{"color-mix", "oklch", "oklab", "lab", "lch"}

// RewriteColors rewrites modern CSS color functions inside css text to
// rgb()/rgba() equivalents. Values it cannot convert are left untouched.
func RewriteColors(css string) string {
	lower := strings.ToLower(css)
	var b strings.Builder
	i := 0
	for i < len(css) {
		name, start := nextColorFn(lower, i)
		if start < 0 {
			b.WriteString(css[i:])
			break
		}
		open := start + len(name)
		end := matchParen(css, open)
		if end < 0 {
			b.WriteString(css[i:])
			break
		}
		b.WriteString(css[i:start])
		if repl, ok := convertColor(name, css[open+1:end-1]); ok {
			b.WriteString(repl)
		} else {
			b.WriteString(css[start:end])
		}
		i = end
	}
	return b.String()
}

// nextColorFn finds the earliest rewritable function call at or after from.
func nextColorFn(lower string, from int) (string, int) {
	best := -1
	bestName := ""
	for _, name := range colorFns {
		idx := from
		for {
			rel := strings.Index(lower[idx:], name+"(")
			if rel < 0 {
				break
			}
			pos := idx + rel
			if isWordBoundary(lower, pos) {
				if best < 0 || pos < best {
					best = pos
					bestName = name
				}
				break
			}
			idx = pos + 1
		}
	}
	return bestName, best
}

func isWordBoundary(s string, pos int) bool {
	if pos == 0 {
		return true
	}
	c := s[pos-1]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-')
}

// matchParen returns the index just past the parenthesis group opening at
// open, or -1 when unbalanced.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func convertColor(name, args string) (string, bool) {
	if name == "color-mix" {
		return convertColorMix(args)
	}
	r, g, b, a, ok := parseModernColor(name, args)
	if !ok {
		return "", false
	}
	return formatRGB(r, g, b, a), true
}

// parseModernColor evaluates one oklch/oklab/lab/lch value to sRGB
// components in [0,1].
func parseModernColor(name, args string) (r, g, b, alpha float64, ok bool) {
	comps, alpha, ok := splitComponents(args)
	if !ok || len(comps) != 3 {
		return 0, 0, 0, 0, false
	}

	var err error
	parse := func(tok string, percentScale float64) float64 {
		v, e := parseComponent(tok, percentScale)
		if e != nil {
			err = e
		}
		return v
	}

	switch name {
	case "oklch":
		L := parse(comps[0], 0.01)
		C := parse(comps[1], 0.004)
		H := parseAngle(comps[2], &err)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		rad := H * math.Pi / 180
		r, g, b = oklabToSRGB(L, C*math.Cos(rad), C*math.Sin(rad))
	case "oklab":
		L := parse(comps[0], 0.01)
		A := parse(comps[1], 0.004)
		B := parse(comps[2], 0.004)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		r, g, b = oklabToSRGB(L, A, B)
	case "lab":
		L := parse(comps[0], 1)
		A := parse(comps[1], 1.25)
		B := parse(comps[2], 1.25)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		r, g, b = labToSRGB(L, A, B)
	case "lch":
		L := parse(comps[0], 1)
		C := parse(comps[1], 1.5)
		H := parseAngle(comps[2], &err)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		rad := H * math.Pi / 180
		r, g, b = labToSRGB(L, C*math.Cos(rad), C*math.Sin(rad))
	default:
		return 0, 0, 0, 0, false
	}
	return r, g, b, alpha, true
}

// splitComponents separates "L C H / alpha" style arguments. Legacy comma
// separators are tolerated.
func splitComponents(args string) (comps []string, alpha float64, ok bool) {
	alpha = 1
	if i := strings.IndexByte(args, '/'); i >= 0 {
		a, err := parseComponent(strings.TrimSpace(args[i+1:]), 0.01)
		if err != nil {
			return nil, 0, false
		}
		alpha = a
		args = args[:i]
	}
	args = strings.ReplaceAll(args, ",", " ")
	return strings.Fields(args), alpha, true
}

func parseComponent(tok string, percentScale float64) (float64, error) {
	tok = strings.TrimSpace(strings.ToLower(tok))
	if tok == "none" {
		return 0, nil
	}
	if strings.HasSuffix(tok, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(tok, "%"), 64)
		return v * percentScale, err
	}
	return strconv.ParseFloat(tok, 64)
}

func parseAngle(tok string, err *error) float64 {
	tok = strings.TrimSpace(strings.ToLower(tok))
	if tok == "none" {
		return 0
	}
	parse := func(s string) float64 {
		v, e := strconv.ParseFloat(s, 64)
		if e != nil {
			*err = e
		}
		return v
	}
	switch {
	case strings.HasSuffix(tok, "grad"):
		return parse(strings.TrimSuffix(tok, "grad")) * 360 / 400
	case strings.HasSuffix(tok, "rad"):
		return parse(strings.TrimSuffix(tok, "rad")) * 180 / math.Pi
	case strings.HasSuffix(tok, "turn"):
		return parse(strings.TrimSuffix(tok, "turn")) * 360
	case strings.HasSuffix(tok, "deg"):
		return parse(strings.TrimSuffix(tok, "deg"))
	default:
		return parse(tok)
	}
}

// convertColorMix resolves color-mix(in <space>, A p%, B p%). Mixing is
// approximated in sRGB whatever interpolation space the value names, which
// is close enough for a diagnostic screenshot.
func convertColorMix(args string) (string, bool) {
	parts := splitTopLevel(args, ',')
	if len(parts) != 3 || !strings.HasPrefix(strings.TrimSpace(strings.ToLower(parts[0])), "in ") {
		return "", false
	}

	c1, w1, has1 := splitColorWeight(parts[1])
	c2, w2, has2 := splitColorWeight(parts[2])

	r1, g1, b1, a1, ok := resolveColor(c1)
	if !ok {
		return "", false
	}
	r2, g2, b2, a2, ok := resolveColor(c2)
	if !ok {
		return "", false
	}

	switch {
	case !has1 && !has2:
		w1, w2 = 0.5, 0.5
	case has1 && !has2:
		w2 = 1 - w1
	case !has1 && has2:
		w1 = 1 - w2
	}
	sum := w1 + w2
	if sum <= 0 {
		return "", false
	}
	w1, w2 = w1/sum, w2/sum

	return formatRGB(
		r1*w1+r2*w2,
		g1*w1+g2*w2,
		b1*w1+b2*w2,
		a1*w1+a2*w2,
	), true
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

// splitColorWeight separates a trailing top-level percentage from a color
// term in a color-mix argument.
func splitColorWeight(s string) (color string, weight float64, hasWeight bool) {
	s = strings.TrimSpace(s)
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ')':
			depth++
		case '(':
			depth--
		case ' ':
			if depth == 0 {
				tail := strings.TrimSpace(s[i+1:])
				if strings.HasSuffix(tail, "%") {
					if v, err := strconv.ParseFloat(strings.TrimSuffix(tail, "%"), 64); err == nil {
						return strings.TrimSpace(s[:i]), v / 100, true
					}
				}
				return s, 0, false
			}
		}
	}
	return s, 0, false
}

var namedColors = map[string][4]float64{
	"white":       {1, 1, 1, 1},
	"black":       {0, 0, 0, 1},
	"red":         {1, 0, 0, 1},
	"green":       {0, 128.0 / 255, 0, 1},
	"blue":        {0, 0, 1, 1},
	"yellow":      {1, 1, 0, 1},
	"cyan":        {0, 1, 1, 1},
	"magenta":     {1, 0, 1, 1},
	"orange":      {1, 165.0 / 255, 0, 1},
	"gray":        {128.0 / 255, 128.0 / 255, 128.0 / 255, 1},
	"grey":        {128.0 / 255, 128.0 / 255, 128.0 / 255, 1},
	"silver":      {192.0 / 255, 192.0 / 255, 192.0 / 255, 1},
	"transparent": {0, 0, 0, 0},
}

// resolveColor evaluates a color term to sRGB components. It understands
// hex, rgb()/rgba(), the modern functions this package rewrites, and a
// handful of named colors; anything else reports !ok so the caller leaves
// the original text alone.
func resolveColor(s string) (r, g, b, a float64, ok bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)

	if v, found := namedColors[lower]; found {
		return v[0], v[1], v[2], v[3], true
	}

	if strings.HasPrefix(lower, "#") {
		return parseHexColor(lower)
	}

	open := strings.IndexByte(lower, '(')
	if open < 0 || !strings.HasSuffix(lower, ")") {
		return 0, 0, 0, 0, false
	}
	name := lower[:open]
	args := s[open+1 : len(s)-1]

	switch name {
	case "rgb", "rgba":
		return parseRGBArgs(args)
	case "oklch", "oklab", "lab", "lch":
		return parseModernColor(name, args)
	}
	return 0, 0, 0, 0, false
}

func parseHexColor(s string) (r, g, b, a float64, ok bool) {
	hex := s[1:]
	expand := func(c byte) byte {
		return c<<4 | c
	}
	var rb, gb, bb, ab byte
	ab = 0xff
	switch len(hex) {
	case 3, 4:
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		shift := 0
		if len(hex) == 4 {
			ab = expand(byte(v & 0xf))
			shift = 4
		}
		rb = expand(byte(v >> (8 + shift) & 0xf))
		gb = expand(byte(v >> (4 + shift) & 0xf))
		bb = expand(byte(v >> shift & 0xf))
	case 6, 8:
		v, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		shift := 0
		if len(hex) == 8 {
			ab = byte(v & 0xff)
			shift = 8
		}
		rb = byte(v >> (16 + shift) & 0xff)
		gb = byte(v >> (8 + shift) & 0xff)
		bb = byte(v >> shift & 0xff)
	default:
		return 0, 0, 0, 0, false
	}
	return float64(rb) / 255, float64(gb) / 255, float64(bb) / 255, float64(ab) / 255, true
}

func parseRGBArgs(args string) (r, g, b, a float64, ok bool) {
	comps, alpha, valid := splitComponents(args)
	if !valid {
		return 0, 0, 0, 0, false
	}
	// Legacy rgba(r, g, b, a) keeps alpha as a fourth component.
	if len(comps) == 4 {
		v, err := parseComponent(comps[3], 0.01)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		alpha = v
		comps = comps[:3]
	}
	if len(comps) != 3 {
		return 0, 0, 0, 0, false
	}
	channel := func(tok string) (float64, error) {
		if strings.HasSuffix(tok, "%") {
			return parseComponent(tok, 0.01)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		return v / 255, err
	}
	var errs [3]error
	r, errs[0] = channel(comps[0])
	g, errs[1] = channel(comps[1])
	b, errs[2] = channel(comps[2])
	for _, err := range errs {
		if err != nil {
			return 0, 0, 0, 0, false
		}
	}
	return r, g, b, alpha, true
}

// oklabToSRGB converts OKLab coordinates to gamma-encoded sRGB in [0,1].
func oklabToSRGB(L, a, b float64) (float64, float64, float64) {
	l := L + 0.3963377774*a + 0.2158037573*b
	m := L - 0.1055613458*a - 0.0638541728*b
	s := L - 0.0894841775*a - 1.2914855480*b

	l, m, s = l*l*l, m*m*m, s*s*s

	r := 4.0767416621*l - 3.3077115913*m + 0.2309699292*s
	g := -1.2684380046*l + 2.6097574011*m - 0.3413193965*s
	bb := -0.0041960863*l - 0.7034186147*m + 1.7076147010*s
	return gammaEncode(r), gammaEncode(g), gammaEncode(bb)
}

// labToSRGB converts CIELAB (D50 white point, as CSS lab() specifies) to
// gamma-encoded sRGB in [0,1].
func labToSRGB(L, a, b float64) (float64, float64, float64) {
	const (
		eps   = 216.0 / 24389.0
		kappa = 24389.0 / 27.0
	)
	fy := (L + 16) / 116
	fx := fy + a/500
	fz := fy - b/200

	finv := func(t float64) float64 {
		if t*t*t > eps {
			return t * t * t
		}
		return (116*t - 16) / kappa
	}

	x := finv(fx) * 0.96422
	z := finv(fz) * 0.82521
	var y float64
	if L > kappa*eps {
		y = fy * fy * fy
	} else {
		y = L / kappa
	}

	r := 3.1338561*x - 1.6168667*y - 0.4906146*z
	g := -0.9787684*x + 1.9161415*y + 0.0334540*z
	bb := 0.0719453*x - 0.2289914*y + 1.4052427*z
	return gammaEncode(r), gammaEncode(g), gammaEncode(bb)
}

func gammaEncode(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

func formatRGB(r, g, b, alpha float64) string {
	to255 := func(v float64) int {
		return int(math.Round(clamp01(v) * 255))
	}
	if alpha < 1 {
		return fmt.Sprintf("rgba(%d, %d, %d, %s)", to255(r), to255(g), to255(b),
			strconv.FormatFloat(clamp01(alpha), 'g', 4, 64))
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", to255(r), to255(g), to255(b))
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
