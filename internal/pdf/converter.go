package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/rs/zerolog"
)

// ErrConversion wraps every converter failure.
var ErrConversion = errors.New("pdf conversion failed")

// Converter turns rendered HTML and CSS into PDF bytes.
type Converter interface {
	Convert(ctx context.Context, doc *Rendered) ([]byte, error)
}

// HTTPConverter posts the page to a Gotenberg compatible HTML-to-PDF service.
type HTTPConverter struct {
	endpoint string
	client   *http.Client
}

func NewHTTPConverter(baseURL string, timeout time.Duration) *HTTPConverter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPConverter{
		endpoint: strings.TrimRight(baseURL, "/") + "/forms/chromium/convert/html",
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPConverter) Convert(ctx context.Context, doc *Rendered) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range map[string]string{"index.html": doc.HTML, "style.css": doc.CSS} {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversion, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: converter returned %d: %s", ErrConversion, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return out, nil
}

// TextLines is how many lines of text the degraded converter keeps.
const TextLines = 40

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	headRe       = regexp.MustCompile(`(?is)<head.*?</head>`)
	blockCloseRe = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|tr|h[1-6]|li)>`)
)

// PlainText strips markup and returns the first max non-empty lines.
func PlainText(page string, max int) []string {
	page = headRe.ReplaceAllString(page, "")
	page = blockCloseRe.ReplaceAllString(page, "\n")
	page = html.UnescapeString(tagRe.ReplaceAllString(page, ""))
	var lines []string
	for _, l := range strings.Split(page, "\n") {
		l = strings.Join(strings.Fields(l), " ")
		if l == "" {
			continue
		}
		lines = append(lines, l)
		if len(lines) == max {
			break
		}
	}
	return lines
}

// TextConverter is the degraded path: the page text, unstyled, in a plain PDF.
type TextConverter struct{}

func (TextConverter) Convert(_ context.Context, doc *Rendered) ([]byte, error) {
	f := gofpdf.New("P", "pt", "Letter", "")
	tr := f.UnicodeTranslatorFromDescriptor("")
	f.SetMargins(50, 42, 50)
	f.SetAutoPageBreak(true, 50)
	f.AddPage()
	f.SetFont("Helvetica", "", 11)
	for _, line := range PlainText(doc.HTML, TextLines) {
		f.CellFormat(0, 20, tr(line), "", 1, "L", false, 0, "")
	}
	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return buf.Bytes(), nil
}

// FallbackConverter tries Primary and, when it fails, logs and uses Fallback.
// A nil Primary goes straight to the fallback.
type FallbackConverter struct {
	Primary  Converter
	Fallback Converter
}

func (c FallbackConverter) Convert(ctx context.Context, doc *Rendered) ([]byte, error) {
	if c.Primary != nil {
		out, err := c.Primary.Convert(ctx, doc)
		if err == nil {
			return out, nil
		}
		if c.Fallback == nil || ctx.Err() != nil {
			return nil, err
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("html to pdf conversion failed, using text fallback")
	}
	if c.Fallback == nil {
		return nil, fmt.Errorf("%w: no converter configured", ErrConversion)
	}
	zerolog.Ctx(ctx).Info().Msg("using text fallback for pdf generation")
	return c.Fallback.Convert(ctx, doc)
}
