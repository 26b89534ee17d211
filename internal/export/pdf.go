package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/joelkehle/kontrata/internal/contract"
)

const renderTimeout = 30 * time.Second

type PDFRenderer struct {
	chromePath string
	md         goldmark.Markdown
}

// NewPDFRenderer uses chromePath when set, otherwise the first Chromium
// found in the usual locations, otherwise whatever chromedp resolves.
func NewPDFRenderer(chromePath string) *PDFRenderer {
	if chromePath == "" {
		chromePath = detectChromePath()
	}
	return &PDFRenderer{
		chromePath: chromePath,
		md:         goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (r *PDFRenderer) Render(ctx context.Context, rec contract.Record) ([]byte, error) {
	htmlDoc, err := r.BuildHTML(rec)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Contract ` + html.EscapeString(rec.ID) + ` · Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.5).
				WithPaperHeight(13).
				WithMarginTop(0.8).
				WithMarginBottom(0.8).
				WithMarginLeft(0.9).
				WithMarginRight(0.9).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

// BuildHTML renders the record as a standalone HTML page.
func (r *PDFRenderer) BuildHTML(rec contract.Record) (string, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(Markdown(rec.Content)), &body); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	title := rec.Category.Title() + " Contract"
	meta := "<div class='meta'>Contract ID: " + html.EscapeString(rec.ID)
	if !rec.CreatedAt.IsZero() {
		meta += " · Generated " + html.EscapeString(rec.CreatedAt.Format("January 2, 2006"))
	}
	meta += "</div>"
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + stylesheet + "</style></head><body>" +
		meta + "<article class='contract'>" + body.String() + "</article></body></html>", nil
}

const stylesheet = `body{font-family:"Times New Roman",Times,serif;font-size:12pt;line-height:1.45;color:#111;margin:0;}
.meta{font-family:Arial,sans-serif;font-size:8pt;color:#666;text-align:right;margin-bottom:1rem;}
.contract h1{text-align:center;font-size:15pt;letter-spacing:0.04em;margin:0 0 1.2rem;}
.contract h2{font-size:12pt;margin:1.1rem 0 0.4rem;break-after:avoid;page-break-after:avoid;}
.contract p{margin:0 0 0.6rem;white-space:pre-wrap;text-align:justify;}
@media print{ @page{size:auto;} }`

var (
	reHeading   = regexp.MustCompile(`^(ARTICLE\s+\d+|SECTION\s+\d+)\b`)
	reListStart = regexp.MustCompile(`^\s*(?:\d+[.)]|[-+=])`)
	reMDEscape  = regexp.MustCompile("([\\\\`*_#\\[\\]<>|~&])")
)

// Markdown converts rendered contract text to markdown. The first line is
// the title and upper-case lines become headings. Other text is escaped and
// leading indentation is kept as non-breaking spaces.
func Markdown(content string) string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var sb strings.Builder
	titled := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			sb.WriteString("\n")
			continue
		case !titled:
			titled = true
			sb.WriteString("# " + escape(trimmed) + "\n\n")
			continue
		case isHeading(trimmed):
			sb.WriteString("\n## " + escape(trimmed) + "\n\n")
			continue
		}
		line = strings.TrimRight(line, " \t")
		body := strings.TrimLeft(line, " ")
		sb.WriteString(strings.Repeat("&nbsp;", len(line)-len(body)) + escape(body) + "\n")
	}
	return sb.String()
}

func isHeading(line string) bool {
	if reHeading.MatchString(line) {
		return true
	}
	if len(line) > 80 || !strings.Contains(line, " ") || strings.ContainsAny(line, "_:()") {
		return false
	}
	return strings.ToUpper(line) == line && strings.ToLower(line) != line
}

func escape(s string) string {
	s = reMDEscape.ReplaceAllString(s, `\$1`)
	// A leading "1." or "-" would start a list.
	if m := reListStart.FindStringIndex(s); m != nil {
		s = s[:m[1]-1] + `\` + s[m[1]-1:]
	}
	return s
}

func detectChromePath() string {
	for _, p := range []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
