package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

// Page is one unit of extracted text. Plain text and web sources produce a
// single page numbered 0; PDFs produce one per physical page, 1-based.
type Page struct {
	Number int
	Text   string
}

// ExtractPages turns raw uploaded bytes into pages based on the file name
// extension. Anything that is not a PDF is treated as plain text.
func ExtractPages(name string, content []byte) ([]Page, error) {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return extractPDF(content)
	}
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []Page{{Number: 0, Text: text}}, nil
}

func extractPDF(content []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// FetchURL downloads a page and extracts its readable main content. The
// returned title falls back to the URL when extraction finds none.
func FetchURL(ctx context.Context, client *http.Client, link string) ([]Page, string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return nil, "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch url: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return nil, "", fmt.Errorf("extract content: %w", err)
	}
	title := article.Title
	if title == "" {
		title = link
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return nil, title, nil
	}
	return []Page{{Number: 0, Text: article.TextContent}}, title, nil
}
