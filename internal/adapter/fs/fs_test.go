package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWalker_IncludesExcludesAndSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, "docs", "b.md"), "# beta")
	writeFile(t, filepath.Join(root, "docs", "c.go"), "package c")
	writeFile(t, filepath.Join(root, ".git", "d.txt"), "ignored")
	writeFile(t, filepath.Join(root, "big.txt"), strings.Repeat("x", 2048))

	w := NewWalker([]string{"**/*.txt", "**/*.md"}, []string{"**/.git/**"}, 1024)
	files, err := w.Walk(root)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f.Path)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.ElementsMatch(t, []string{"a.txt", "docs/b.md"}, names)
}

func TestWalker_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.txt")
	writeFile(t, path, "one")

	files, err := NewWalker(nil, nil, 0).Walk(path)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(3), files[0].Size)
}

func TestLoader_TextAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader()

	txt := filepath.Join(dir, "notes.txt")
	writeFile(t, txt, "first line\nsecond line")
	pages, err := l.Load(txt)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "first line\nsecond line", pages[0].Text)

	md := filepath.Join(dir, "guide.md")
	writeFile(t, md, "# Title\n\nSome *emphasis* here.\n\n- item one\n- item two\n")
	pages, err = l.Load(md)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Title")
	assert.Contains(t, pages[0].Text, "Some emphasis here.")
	assert.Contains(t, pages[0].Text, "item two")
	assert.NotContains(t, pages[0].Text, "#")
	assert.NotContains(t, pages[0].Text, "*")
}

func TestLoader_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.png")
	writeFile(t, path, "png")

	_, err := NewLoader().Load(path)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.False(t, Supported(path))
	assert.True(t, Supported("REPORT.PDF"))
}

func TestXMLText(t *testing.T) {
	content := `<w:body><w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>A &amp; B</w:t></w:r></w:p></w:body>`
	assert.Equal(t, "Hello world\n\nA & B", xmlText(content, wordParagraphEnd, wordText))

	slide := `<p:txBody><a:p><a:r><a:t>Quarterly</a:t></a:r></a:p><a:p><a:r><a:t>Results</a:t></a:r></a:p></p:txBody>`
	assert.Equal(t, "Quarterly\n\nResults", xmlText(slide, drawingParagraphEnd, drawingText))
}
