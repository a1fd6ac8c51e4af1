package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Photosynthesis converts light into energy</w:t></w:r><w:r><w:t>.</w:t></w:r></w:p>
    <w:p><w:r><w:t>   </w:t></w:r></w:p>
    <w:p><w:r><w:t>Chlorophyll absorbs the light.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeDocx(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "notes.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(minimalDocumentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("notes.pdf"))
	assert.True(t, IsSupported("Notes.DOCX"))
	assert.True(t, IsSupported("a.txt"))
	assert.False(t, IsSupported("slides.pptx"))
	assert.False(t, IsSupported("noext"))
}

func TestDOCX(t *testing.T) {
	path := writeDocx(t, t.TempDir())

	text, err := DOCX(path)
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light into energy.\nChlorophyll absorbs the light.", text)
}

func TestDOCXMissingDocumentXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = DOCX(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document.xml")
}

func TestTXT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("  plain notes\n"), 0o644))

	text, err := TXT(path)
	require.NoError(t, err)
	assert.Equal(t, "plain notes", text)
}

func TestTextDispatch(t *testing.T) {
	dir := t.TempDir()
	docx := writeDocx(t, dir)

	text, err := Text(docx)
	require.NoError(t, err)
	assert.Contains(t, text, "Photosynthesis")

	_, err = Text(filepath.Join(dir, "x.pptx"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
