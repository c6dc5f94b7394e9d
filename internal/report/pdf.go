package report

import (
	"context"
	"os"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/obralens/obralens/internal/errors"
)

// A4 paper with 20mm top/bottom and 10mm left/right margins, in inches as
// Chrome's print API expects.
const (
	paperWidthIn   = 8.27
	paperHeightIn  = 11.69
	marginVertIn   = 0.787
	marginHorizIn  = 0.394
)

// GeneratePDF builds the report HTML for an inspection and renders it to PDF
// with headless Chrome. The render is bounded by the configured timeout.
func (g *Generator) GeneratePDF(ctx context.Context, projectID, inspectionID string) ([]byte, error) {
	html, err := g.BuildHTML(projectID, inspectionID)
	if err != nil {
		return nil, err
	}

	// Chrome loads the page from a temp file; embedded data URIs keep it
	// self-contained.
	tmp, err := os.CreateTemp("", "obralens-report-*.html")
	if err != nil {
		return nil, errors.Newf("creating report temp file: %w", err).
			Component("report").
			Category(errors.CategoryFileIO).
			Build()
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			g.logger.Warn("failed to remove report temp file", "path", tmpPath, "error", err)
		}
	}()
	if _, err := tmp.WriteString(html); err != nil {
		_ = tmp.Close()
		return nil, errors.Newf("writing report temp file: %w", err).
			Component("report").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Newf("closing report temp file: %w", err).
			Component("report").
			Category(errors.CategoryFileIO).
			Build()
	}

	pdf, err := g.renderPDF(ctx, "file://"+tmpPath)
	if err != nil {
		return nil, err
	}

	g.logger.Info("report generated",
		"project_id", projectID,
		"inspection_id", inspectionID,
		"bytes", len(pdf))
	return pdf, nil
}

// renderPDF prints the given URL with a fresh headless browser.
func (g *Generator) renderPDF(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.renderTimeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidthIn).
				WithPaperHeight(paperHeightIn).
				WithMarginTop(marginVertIn).
				WithMarginBottom(marginVertIn).
				WithMarginLeft(marginHorizIn).
				WithMarginRight(marginHorizIn).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, errors.Newf("rendering report PDF: %w", err).
			Component("report").
			Category(errors.CategoryReport).
			Build()
	}
	return pdf, nil
}
