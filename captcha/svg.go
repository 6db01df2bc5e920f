package captcha

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

var palette = []string{"#1f2937", "#7c2d12", "#1e3a8a", "#14532d", "#581c87"}

// renderSVG draws text with per-glyph rotation and offset over a few
// random noise lines. The output is self-contained SVG markup.
func renderSVG(text string, width, height, noise int) string {
	var b strings.Builder
	b.Grow(512 + len(text)*128 + noise*96)

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="#f3f4f6"/>`)

	for i := 0; i < noise; i++ {
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="1"/>`,
			rand.IntN(width), rand.IntN(height), rand.IntN(width), rand.IntN(height),
			palette[rand.IntN(len(palette))])
	}

	step := width / (len(text) + 1)
	fontSize := height * 3 / 5
	for i, r := range text {
		x := step*(i+1) - fontSize/4 + rand.IntN(5) - 2
		y := height/2 + fontSize/3 + rand.IntN(7) - 3
		rot := rand.IntN(41) - 20
		fmt.Fprintf(&b, `<text x="%d" y="%d" font-family="monospace" font-size="%d" fill="%s" transform="rotate(%d %d %d)">%c</text>`,
			x, y, fontSize, palette[rand.IntN(len(palette))], rot, x, y, r)
	}

	b.WriteString(`</svg>`)
	return b.String()
}
