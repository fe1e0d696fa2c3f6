// Package scrape saves the readable text of a web page as a PDF so it can be
// indexed into the knowledge base.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/persona-coach/internal/gcs"
	"github.com/dvloznov/persona-coach/internal/logger"
	"github.com/go-pdf/fpdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 10 << 20

var unsafeFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// Writer stores the rendered page at a local path or gs:// URI.
type Writer interface {
	Write(ctx context.Context, location string, data []byte, contentType string) error
}

// Scraper fetches pages and writes their text under a directory.
type Scraper struct {
	client *http.Client
	writer Writer
}

// New creates a Scraper. A nil client gets a 30 second timeout.
func New(client *http.Client, writer Writer) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scraper{client: client, writer: writer}
}

// Scrape fetches rawURL, extracts its text, renders it to a PDF and writes it
// under dir. It returns the location written.
func (s *Scraper) Scrape(ctx context.Context, rawURL, dir string) (string, error) {
	name, err := Filename(rawURL)
	if err != nil {
		return "", err
	}

	log := logger.FromContext(ctx)
	log.Info().Str("url", rawURL).Msg("Fetching page")

	body, err := s.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	text, err := ExtractText(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("scrape %s: %w", rawURL, err)
	}
	if text == "" {
		return "", fmt.Errorf("scrape %s: page has no text", rawURL)
	}

	doc, err := RenderPDF(text)
	if err != nil {
		return "", fmt.Errorf("scrape %s: %w", rawURL, err)
	}

	location := gcs.Join(dir, name)
	if err := s.writer.Write(ctx, location, doc, "application/pdf"); err != nil {
		return "", fmt.Errorf("scrape %s: %w", rawURL, err)
	}

	log.Info().Str("url", rawURL).Str("location", location).Int("bytes", len(doc)).Msg("Saved page PDF")
	return location, nil
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", "persona-coach-scraper/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: reading body: %w", rawURL, err)
	}
	return body, nil
}

// Filename derives the output name for a page:
// https://www.example.com/a/b/c becomes example-com_b_c.pdf.
func Filename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: no host", rawURL)
	}

	domain := strings.ReplaceAll(strings.ReplaceAll(u.Host, "www.", ""), ".", "-")

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}

	base := unsafeFilenameChars.ReplaceAllString(domain+"_"+strings.Join(parts, "_"), "")
	return base + ".pdf", nil
}

// ExtractText returns the page's text with script and style content removed,
// each line trimmed and blank lines dropped.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// RenderPDF lays text out on A4 pages in 12pt Arial. The core fonts are
// single-byte, so text is translated to code page 1252 first.
func RenderPDF(text string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.MultiCell(0, 10, tr(text), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering PDF: %w", err)
	}
	return buf.Bytes(), nil
}
