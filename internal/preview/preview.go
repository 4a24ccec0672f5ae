// Package preview fetches a web page and extracts a short human-readable
// description: og/twitter/meta description first, then JSON-LD, then the
// first substantial paragraph.
package preview

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Android) AppleWebKit/537.36 (KHTML, like Gecko) Chrome Mobile Safari/537.36"
	acceptHeader     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	// First fetch asks for a byte range; some origins ignore or reject it,
	// so a plain retry follows. Reads are bounded either way.
	rangeHeader  = "bytes=0-200000"
	maxBodyBytes = 512 * 1024

	// Sample bounds: head plus 50KB of body, or a flat 150KB cap when the
	// page has no head close tag.
	bodyExtra = 50000
	capNoHead = 150000

	maxPreviewLen = 220
)

// ErrInvalidTarget reports an unparseable or non-HTTP target URL.
var ErrInvalidTarget = eris.New("preview: invalid target")

// Fetcher retrieves pages and extracts previews.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent overrides the request user agent.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// New builds a Fetcher with a 15s request timeout.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: 15 * time.Second},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Preview fetches target and extracts a description. An empty string with a
// nil error means the page yielded nothing usable; only an invalid target is
// an error the caller should surface as a client fault.
func (f *Fetcher) Preview(ctx context.Context, target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidTarget
	}

	body, err := f.fetch(ctx, u.String(), true)
	if err != nil || body == "" {
		if err != nil {
			zap.L().Debug("preview: ranged fetch failed, retrying plain",
				zap.String("target", u.Host), zap.Error(err))
		}
		body, err = f.fetch(ctx, u.String(), false)
		if err != nil {
			zap.L().Info("preview: fetch failed", zap.String("target", u.Host), zap.Error(err))
			return "", nil
		}
	}
	if body == "" {
		return "", nil
	}
	return Extract(makeSample(body)), nil
}

func (f *Fetcher) fetch(ctx context.Context, target string, ranged bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", eris.Wrap(err, "preview: build request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)
	if ranged {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "preview: fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", eris.Errorf("preview: fetch status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "preview: read body")
	}
	return string(raw), nil
}

// makeSample bounds the HTML to the interesting region: everything through
// </head> plus some body, or a flat prefix when no head is present.
func makeSample(htmlText string) string {
	lower := strings.ToLower(htmlText)
	if headEnd := strings.Index(lower, "</head>"); headEnd >= 0 {
		end := headEnd + len("</head>") + bodyExtra
		if end > len(htmlText) {
			end = len(htmlText)
		}
		return htmlText[:end]
	}
	if len(htmlText) > capNoHead {
		return htmlText[:capNoHead]
	}
	return htmlText
}

var (
	metaPatterns = []*regexp.Regexp{
		metaRe("property", "og:description"),
		metaReRev("property", "og:description"),
		metaRe("name", "twitter:description"),
		metaReRev("name", "twitter:description"),
		metaRe("property", "twitter:description"),
		metaReRev("property", "twitter:description"),
		metaRe("name", "description"),
		metaReRev("name", "description"),
	}

	jsonLDRe     = regexp.MustCompile(`(?is)<script[^>]*type\s*=\s*"application/ld\+json"[^>]*>(.*?)</script>`)
	jsonLDDescRe = regexp.MustCompile(`(?s)"description"\s*:\s*"(.*?)"`)
	paragraphRe  = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)

	tagRe      = regexp.MustCompile(`<[^>]+>`)
	spaceRe    = regexp.MustCompile(`\s+`)
	enumWordRe = regexp.MustCompile(`(?i)^(step|part)\s*\d+[:).\-]\s*`)
	enumNumRe  = regexp.MustCompile(`^\d+\s*[).\-:]\s*`)
	bylineRe   = regexp.MustCompile(`(?i)^(by |posted )`)
	noiseRe    = regexp.MustCompile(`(?i)cookie|subscribe`)
	sentenceRe = regexp.MustCompile(`[.!?]\s`)
)

func metaRe(attr, value string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)<meta[^>]*` + attr + `=["']` + regexp.QuoteMeta(value) + `["'][^>]*content=["'](.*?)["']`)
}

func metaReRev(attr, value string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)<meta[^>]*content=["'](.*?)["'][^>]*` + attr + `=["']` + regexp.QuoteMeta(value) + `["']`)
}

// Extract pulls a preview string from an HTML sample. Empty means nothing
// usable was found.
func Extract(sample string) string {
	text := extractMeta(sample)
	if text == "" {
		text = extractJSONLD(sample)
	}
	if text == "" {
		text = extractParagraph(sample)
	}
	if text == "" {
		return ""
	}

	text = strings.TrimSpace(normalizeSpaces(html.UnescapeString(stripTags(text))))
	if text == "" {
		return ""
	}

	// Cut to the first sentence when it is long enough to stand alone,
	// otherwise hard-cap the length.
	if loc := sentenceRe.FindStringIndex(text); loc != nil && loc[0] >= 60 {
		text = text[:loc[0]+1]
	} else if r := []rune(text); len(r) > maxPreviewLen {
		text = strings.TrimSpace(string(r[:maxPreviewLen])) + "…"
	}
	text = enumNumRe.ReplaceAllString(text, "")
	text = enumWordRe.ReplaceAllString(text, "")
	return text
}

func extractMeta(sample string) string {
	for _, re := range metaPatterns {
		if m := re.FindStringSubmatch(sample); m != nil && m[1] != "" {
			return m[1]
		}
	}
	return ""
}

func extractJSONLD(sample string) string {
	block := jsonLDRe.FindStringSubmatch(sample)
	if block == nil {
		return ""
	}
	if m := jsonLDDescRe.FindStringSubmatch(block[1]); m != nil {
		return m[1]
	}
	return ""
}

// extractParagraph returns the first paragraph of at least 40 cleaned
// characters that is not an enumeration line, byline, or cookie/subscribe
// boilerplate; failing that, the first non-empty paragraph.
func extractParagraph(sample string) string {
	matches := paragraphRe.FindAllStringSubmatch(sample, -1)
	var firstNonEmpty string
	for _, m := range matches {
		plain := strings.TrimSpace(normalizeSpaces(html.UnescapeString(stripTags(m[1]))))
		if plain == "" {
			continue
		}
		if firstNonEmpty == "" {
			firstNonEmpty = plain
		}
		if len(plain) < 40 || enumWordRe.MatchString(plain) || enumNumRe.MatchString(plain) ||
			bylineRe.MatchString(plain) || noiseRe.MatchString(plain) {
			continue
		}
		return plain
	}
	return firstNonEmpty
}

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, " ")
}

func normalizeSpaces(s string) string {
	return spaceRe.ReplaceAllString(s, " ")
}
