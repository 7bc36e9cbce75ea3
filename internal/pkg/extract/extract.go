// Package extract turns uploaded files into plain text for chunking.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	TypePDF      = "pdf"
	TypeDOCX     = "docx"
	TypeMarkdown = "md"
	TypeText     = "txt"
)

var ErrUnsupportedFileType = errors.New("unsupported file type")

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>`)
	docxLineBreak    = regexp.MustCompile(`<w:(br|cr)[^>]*/>`)
	docxTab          = regexp.MustCompile(`<w:tab[^>]*/>`)
	xmlTag           = regexp.MustCompile(`<[^>]+>`)
)

// Result is the extracted text. PageStarts holds the character offset at
// which each page begins; it is empty for formats without pages.
type Result struct {
	Text       string
	PageStarts []int
}

// PageAt returns the 1-based page containing the character offset pos.
func (r Result) PageAt(pos int) (int, bool) {
	if len(r.PageStarts) == 0 || pos < 0 {
		return 0, false
	}
	page := 0
	for i, start := range r.PageStarts {
		if start > pos {
			break
		}
		page = i + 1
	}
	return page, page > 0
}

// FileType maps a file name to one of the supported types, or "".
func FileType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return TypePDF
	case ".docx":
		return TypeDOCX
	case ".md", ".markdown":
		return TypeMarkdown
	case ".txt", ".text":
		return TypeText
	default:
		return ""
	}
}

// FileTypeFromMIME maps a Content-Type header to a supported type, or "".
func FileTypeFromMIME(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "application/pdf":
		return TypePDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return TypeDOCX
	case "text/markdown", "text/x-markdown":
		return TypeMarkdown
	case "text/plain":
		return TypeText
	default:
		return ""
	}
}

func Extract(data []byte, fileType string) (Result, error) {
	var (
		res Result
		err error
	)
	switch fileType {
	case TypePDF:
		res, err = extractPDF(data)
	case TypeDOCX:
		res.Text, err = extractDOCX(data)
	case TypeMarkdown:
		res.Text = markdownText(normalize(data))
	case TypeText:
		res.Text = string(normalize(data))
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFileType, fileType)
	}
	if err != nil {
		return Result{}, fmt.Errorf("extract %s failed: %w", fileType, err)
	}
	return res.trimmed(), nil
}

// trimmed strips surrounding whitespace and moves page offsets with the text.
func (r Result) trimmed() Result {
	lead := utf8.RuneCountInString(r.Text) - utf8.RuneCountInString(strings.TrimLeftFunc(r.Text, unicode.IsSpace))
	r.Text = strings.TrimSpace(r.Text)
	if len(r.PageStarts) == 0 {
		return r
	}
	size := utf8.RuneCountInString(r.Text)
	starts := make([]int, len(r.PageStarts))
	for i, start := range r.PageStarts {
		start -= lead
		if start < 0 {
			start = 0
		}
		if start > size {
			start = size
		}
		starts[i] = start
	}
	r.PageStarts = starts
	return r
}

func normalize(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	return data
}

func extractPDF(data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, err
	}

	var (
		b      strings.Builder
		starts []int
		offset int
	)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return Result{}, fmt.Errorf("page %d: %w", i, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
			offset += 2
		}
		starts = append(starts, offset)
		b.WriteString(pageText)
		offset += utf8.RuneCountInString(pageText)
	}
	return Result{Text: b.String(), PageStarts: starts}, nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = docxParagraphEnd.ReplaceAllString(content, "\n\n")
	content = docxLineBreak.ReplaceAllString(content, "\n")
	content = docxTab.ReplaceAllString(content, "\t")
	content = xmlTag.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(content)), nil
}

// markdownText renders the document's text content, one blank line between blocks.
func markdownText(src []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				b.WriteString("\n\n")
				return ast.WalkSkipChildren, nil
			}
		case *east.TableCell:
			if !entering {
				b.WriteByte(' ')
			}
		case *east.TableHeader, *east.TableRow:
			if !entering {
				b.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock, *east.Table:
			if !entering {
				b.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
