package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_OGDescription(t *testing.T) {
	sample := `<html><head><meta property="og:description" content="A compact guide to starting a coffee cart business with low capital."></head><body></body></html>`
	got := Extract(sample)
	assert.Equal(t, "A compact guide to starting a coffee cart business with low capital.", got)
}

func TestExtract_MetaPrecedence(t *testing.T) {
	sample := `<head>
		<meta name="description" content="Plain meta description that is long enough to matter here.">
		<meta property="og:description" content="The OG description wins over the plain one every single time.">
	</head>`
	assert.Equal(t, "The OG description wins over the plain one every single time.", Extract(sample))
}

func TestExtract_ReversedAttributeOrder(t *testing.T) {
	sample := `<head><meta content="Content attribute first, property attribute second, still matches fine." property="og:description"></head>`
	assert.Equal(t, "Content attribute first, property attribute second, still matches fine.", Extract(sample))
}

func TestExtract_TwitterDescription(t *testing.T) {
	sample := `<head><meta name="twitter:description" content="Short social card text describing the page for twitter previews."></head>`
	assert.Equal(t, "Short social card text describing the page for twitter previews.", Extract(sample))
}

func TestExtract_JSONLD(t *testing.T) {
	sample := `<head><script type="application/ld+json">{"@type":"Article","description":"Structured data description of an article about lean startups."}</script></head>`
	assert.Equal(t, "Structured data description of an article about lean startups.", Extract(sample))
}

func TestExtract_FirstGoodParagraph(t *testing.T) {
	sample := `<body>
		<p>By Jane Doe, staff writer covering small business finance topics</p>
		<p>Step 1: do the thing that the enumeration filter should reject here</p>
		<p>We use cookies to improve your experience on this site and such.</p>
		<p>short</p>
		<p>Opening a food stall takes less capital than most founders expect, and the permits are the hard part.</p>
	</body>`
	got := Extract(sample)
	assert.Contains(t, got, "Opening a food stall takes less capital")
}

func TestExtract_FallsBackToAnyParagraph(t *testing.T) {
	sample := `<body><p>Tiny intro.</p></body>`
	assert.Equal(t, "Tiny intro.", Extract(sample))
}

func TestExtract_SentenceCut(t *testing.T) {
	sample := `<head><meta property="og:description" content="This first sentence is comfortably longer than sixty characters so it stands alone. This second sentence should be cut away entirely."></head>`
	got := Extract(sample)
	assert.Equal(t, "This first sentence is comfortably longer than sixty characters so it stands alone.", got)
}

func TestExtract_LengthCap(t *testing.T) {
	long := strings.Repeat("word ", 100)
	sample := `<head><meta property="og:description" content="` + long + `"></head>`
	got := Extract(sample)
	assert.LessOrEqual(t, len([]rune(got)), maxPreviewLen+len("…"))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestExtract_DecodesEntities(t *testing.T) {
	sample := `<head><meta property="og:description" content="Fish &amp; chips &quot;done right&quot; without the grease or the wait."></head>`
	assert.Equal(t, `Fish & chips "done right" without the grease or the wait.`, Extract(sample))
}

func TestExtract_Empty(t *testing.T) {
	assert.Empty(t, Extract("<html><body><div>no paragraphs</div></body></html>"))
	assert.Empty(t, Extract(""))
}

func TestMakeSample(t *testing.T) {
	page := "<head>x</head>" + strings.Repeat("b", bodyExtra+1000)
	sample := makeSample(page)
	assert.Len(t, sample, len("<head>x</head>")+bodyExtra)

	noHead := strings.Repeat("c", capNoHead+5000)
	assert.Len(t, makeSample(noHead), capNoHead)

	small := "<p>tiny</p>"
	assert.Equal(t, small, makeSample(small))
}

func TestPreview_FetchesAndExtracts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, rangeHeader, r.Header.Get("Range"))
		w.Write([]byte(`<head><meta property="og:description" content="Served over HTTP for the fetch test."></head>`))
	}))
	defer srv.Close()

	f := New(WithHTTPClient(srv.Client()))
	got, err := f.Preview(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Served over HTTP for the fetch test.", got)
}

func TestPreview_RetriesWithoutRange(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Write([]byte(`<head><meta property="og:description" content="Range rejected, plain retry worked."></head>`))
	}))
	defer srv.Close()

	f := New(WithHTTPClient(srv.Client()))
	got, err := f.Preview(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Range rejected, plain retry worked.", got)
	assert.Equal(t, 2, calls)
}

func TestPreview_InvalidTarget(t *testing.T) {
	f := New()
	_, err := f.Preview(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = f.Preview(context.Background(), "ftp://example.com/x")
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestPreview_UpstreamFailureDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(WithHTTPClient(srv.Client()))
	got, err := f.Preview(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, got)
}
