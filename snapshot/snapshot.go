// Package snapshot persists a fetched page as a markdown file: main content
// extracted with readability, then converted with html-to-markdown.
package snapshot

import (
	"fmt"
	"log/slog"
	nurl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the minimum TextContent length (in characters) for
// readability output to be considered valid. Below this threshold we assume
// the algorithm failed to locate the main content and fall back to raw HTML.
const minContentLength = 50

// Writer converts fetched pages to markdown and writes them into a directory.
// The converter is created once and reused (goroutine-safe).
type Writer struct {
	dir  string
	conv *converter.Converter
}

// NewWriter creates a snapshot Writer for the given directory, creating the
// directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	return &Writer{
		dir: dir,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}, nil
}

// Write converts rawHTML to markdown and writes it to
// <dir>/<host>-<timestamp>.md. Returns the written path.
func (w *Writer) Write(rawHTML, sourceURL string) (string, error) {
	content := mainContent(rawHTML, sourceURL)

	domain := ""
	if u, err := nurl.Parse(sourceURL); err == nil {
		domain = u.Hostname()
	}

	md, err := w.conv.ConvertString(content, converter.WithDomain(domain))
	if err != nil {
		return "", fmt.Errorf("snapshot: markdown conversion: %w", err)
	}

	name := fmt.Sprintf("%s-%s.md", hostLabel(domain), time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("snapshot: write file: %w", err)
	}
	return path, nil
}

// mainContent runs the Mozilla Readability algorithm on rawHTML and returns
// the main content HTML. The snapshot must never fail just because
// readability choked, so every failure path falls back to the raw HTML:
//   - URL parsing fails            → raw HTML
//   - readability.FromReader errs  → raw HTML
//   - extracted TextContent < 50   → raw HTML
func mainContent(rawHTML, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source URL, falling back to raw HTML",
			"url", sourceURL, "error", err,
		)
		return rawHTML
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed, falling back to raw HTML",
			"url", sourceURL, "error", err,
		)
		return rawHTML
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Warn("readability: extracted content too short, falling back to raw HTML",
			"url", sourceURL, "length", len(article.TextContent),
		)
		return rawHTML
	}

	return article.Content
}

// hostLabel turns a hostname into a safe file-name fragment.
func hostLabel(host string) string {
	if host == "" {
		return "page"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '.':
			return '-'
		default:
			return '_'
		}
	}, host)
}
