package fs

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"docrag/internal/domain"
)

// Loader extracts pages from supported document formats. PDF pages map
// one to one; spreadsheets yield one page per sheet and slides one per
// slide; everything else is a single page.
type Loader struct {
	md goldmark.Markdown
}

func NewLoader() *Loader {
	return &Loader{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Supported reports whether path has an extension Load understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".xlsx", ".xlsm", ".xltx", ".pptx", ".md", ".markdown", ".txt":
		return true
	}
	return false
}

func (l *Loader) Load(path string) ([]domain.Page, error) {
	var (
		pages []domain.Page
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		pages, err = loadPDF(path)
	case ".docx":
		pages, err = loadDOCX(path)
	case ".xlsx":
		pages, err = loadXLSX(path)
	case ".xlsm", ".xltx":
		pages, err = loadExcelize(path)
	case ".pptx":
		pages, err = loadPPTX(path)
	case ".md", ".markdown":
		pages, err = l.loadMarkdown(path)
	case ".txt":
		pages, err = loadText(path)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return pages, nil
}

func loadPDF(path string) ([]domain.Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]domain.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Int("page", i).Msg("failed to extract page text")
			content = ""
		}
		pages = append(pages, domain.Page{Number: i, Text: content})
	}
	return pages, nil
}

var (
	wordParagraphEnd    = regexp.MustCompile(`</w:p>`)
	wordText            = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	drawingParagraphEnd = regexp.MustCompile(`</a:p>`)
	drawingText         = regexp.MustCompile(`<a:t>([^<]*)</a:t>`)
)

// xmlText joins the inner text of every run matched by re, one paragraph
// per match of paraEnd.
func xmlText(content string, paraEnd, re *regexp.Regexp) string {
	var b strings.Builder
	for _, para := range paraEnd.Split(content, -1) {
		matches := re.FindAllStringSubmatch(para, -1)
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			b.WriteString(html.UnescapeString(m[1]))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func loadDOCX(path string) ([]domain.Page, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return []domain.Page{{Number: 1, Text: xmlText(r.Editable().GetContent(), wordParagraphEnd, wordText)}}, nil
}

func sheetText(name string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sheet: %s\n", name)
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteString("\n")
	}
	return b.String()
}

func loadXLSX(path string) ([]domain.Page, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, err
	}

	pages := make([]domain.Page, 0, len(f.Sheets))
	for i, sheet := range f.Sheets {
		rows := make([][]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: sheetText(sheet.Name, rows)})
	}
	return pages, nil
}

func loadExcelize(path string) ([]domain.Page, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	pages := make([]domain.Page, 0, len(sheets))
	for i, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: sheetText(name, rows)})
	}
	return pages, nil
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func loadPPTX(path string) ([]domain.Page, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	pages := make([]domain.Page, 0, len(slides))
	for i, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: xmlText(string(data), drawingParagraphEnd, drawingText)})
	}
	return pages, nil
}

func (l *Loader) loadMarkdown(path string) ([]domain.Page, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []domain.Page{{Number: 1, Text: l.markdownText(src)}}, nil
}

// markdownText renders the plain text of a markdown document, one block per
// paragraph.
func (l *Loader) markdownText(src []byte) string {
	doc := l.md.Parser().Parse(text.NewReader(src))

	var b bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument && n.Kind() != ast.KindList {
				b.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
		case *ast.AutoLink:
			b.Write(node.URL(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func loadText(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []domain.Page{{Number: 1, Text: string(data)}}, nil
}
