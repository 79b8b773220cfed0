package pdf

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB is a color split into channels for CSS custom properties.
type RGB struct{ R, G, B uint8 }

func (c RGB) String() string { return fmt.Sprintf("%d, %d, %d", c.R, c.G, c.B) }

// ParseHex reads "#RRGGBB". Anything else yields fallback.
func ParseHex(hex string, fallback RGB) RGB {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return fallback
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

var (
	defaultPrimary = RGB{0x6B, 0x46, 0xC1}
	defaultAccent  = RGB{0x8B, 0x5C, 0xF6}
)

// Theme carries the company branding used by the stylesheet.
type Theme struct {
	Primary    RGB
	Accent     RGB
	FontFamily string
}

// ThemeCSS renders the document stylesheet with the company colors and font.
func ThemeCSS(t Theme) string {
	font := t.FontFamily
	if strings.TrimSpace(font) == "" {
		font = "Inter, system-ui, sans-serif"
	}
	// font families come from company settings; keep them out of other rules
	font = strings.NewReplacer(";", "", "{", "", "}", "").Replace(font)
	return fmt.Sprintf(themeCSS, t.Primary, t.Accent, font)
}

const themeCSS = `:root {
  --primary-rgb: %s;
  --accent-rgb: %s;
  --font-family: %s;
}
body { font-family: var(--font-family); margin: 0; padding: 20px; line-height: 1.6; color: #333; }
.header { border-bottom: 3px solid rgb(var(--primary-rgb)); padding-bottom: 20px; margin-bottom: 30px; display: flex; justify-content: space-between; }
.company-logo { max-height: 60px; margin-bottom: 10px; }
.company-name { font-size: 24px; font-weight: bold; color: rgb(var(--primary-rgb)); margin: 0; }
.document-title { font-size: 32px; font-weight: bold; color: rgb(var(--primary-rgb)); text-align: right; margin: 0; }
.document-number { font-size: 18px; color: rgb(var(--accent-rgb)); text-align: right; margin: 5px 0; }
.client-info { background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0; }
.items-table { width: 100%%; border-collapse: collapse; margin: 20px 0; }
.items-table th { background-color: rgb(var(--primary-rgb)); color: white; padding: 12px; text-align: left; }
.items-table td { padding: 10px 12px; border-bottom: 1px solid #ddd; }
.items-table tr:nth-child(even) { background-color: #f8f9fa; }
.num { text-align: right; }
.totals-section { margin-top: 30px; text-align: right; }
.total-row { margin: 5px 0; font-size: 16px; }
.final-total { font-size: 20px; font-weight: bold; color: rgb(var(--primary-rgb)); border-top: 2px solid rgb(var(--primary-rgb)); padding-top: 10px; margin-top: 10px; }
.footer { margin-top: 50px; padding-top: 20px; border-top: 1px solid #ddd; font-size: 12px; color: #666; }
@page { margin: 2cm; }
`
