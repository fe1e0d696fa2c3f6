package scrape

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/persona-coach/internal/gcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	WriteFunc func(ctx context.Context, location string, data []byte, contentType string) error
}

func (m *mockWriter) Write(ctx context.Context, location string, data []byte, contentType string) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, location, data, contentType)
	}
	return nil
}

func TestFilename(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.example.com/money/guides/budgeting-101", "example-com_guides_budgeting-101.pdf"},
		{"https://blog.example.co.in/saving", "blog-example-co-in_saving.pdf"},
		{"https://example.com/", "example-com_.pdf"},
		{"https://example.com/a/b:c?d", "example-com_a_bc.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := Filename(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Filename("not a url")
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	page := `<html><head><title>Budgeting</title><style>body{color:red}</style></head>
<body>
  <h1>  Save first  </h1>
  <script>var x = 1;</script>

  <p>Spend what
     remains.</p>
</body></html>`

	text, err := ExtractText(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "Budgeting\nSave first\nSpend what\nremains.", text)
	assert.NotContains(t, text, "color")
	assert.NotContains(t, text, "var x")
}

func TestRenderPDF(t *testing.T) {
	doc, err := RenderPDF("Save first\nSpend what remains.")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.True(t, bytes.Contains(doc, []byte("%%EOF")))
}

func TestRenderPDF_NonLatinText(t *testing.T) {
	doc, err := RenderPDF("₹500 café, 家計簿")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
}

func TestScrape_WritesPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>Track every rupee.</p>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := New(srv.Client(), gcs.NewGCSStorageService())

	location, err := s.Scrape(context.Background(), srv.URL+"/tips/daily", dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(location))
	assert.True(t, strings.HasSuffix(location, "_tips_daily.pdf"))

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestScrape_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	written := false
	s := New(srv.Client(), &mockWriter{
		WriteFunc: func(ctx context.Context, location string, data []byte, contentType string) error {
			written = true
			return nil
		},
	})

	_, err := s.Scrape(context.Background(), srv.URL+"/missing", "gs://kb/pages")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.False(t, written)
}

func TestScrape_GCSLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<div>Emergency fund</div>"))
	}))
	defer srv.Close()

	var gotLocation, gotType string
	s := New(srv.Client(), &mockWriter{
		WriteFunc: func(ctx context.Context, location string, data []byte, contentType string) error {
			gotLocation, gotType = location, contentType
			return nil
		},
	})

	location, err := s.Scrape(context.Background(), srv.URL+"/a/b/c", "gs://kb/pages/")
	require.NoError(t, err)
	assert.Equal(t, location, gotLocation)
	assert.True(t, strings.HasPrefix(location, "gs://kb/pages/127-0-0-1"))
	assert.True(t, strings.HasSuffix(location, "_b_c.pdf"))
	assert.Equal(t, "application/pdf", gotType)
}
