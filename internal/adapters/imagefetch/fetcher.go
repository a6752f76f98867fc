package imagefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var ErrNotImage = errors.New("le contenu n'est pas une image")

type Options struct {
	Timeout time.Duration
	// RequestsPerSecond bounds outgoing downloads; 0 disables the limit.
	RequestsPerSecond float64
	MaxBytes          int64
}

type Image struct {
	Data        []byte
	ContentType string
	Ext         string
	SourceURL   string
}

// Fetcher downloads supplier images. A URL pointing at an HTML product page
// is resolved once through its og:image or first <img>.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	f := &Fetcher{
		client:   &http.Client{Timeout: opts.Timeout},
		maxBytes: opts.MaxBytes,
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	return f.fetch(ctx, strings.TrimSpace(rawURL), true)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, followPage bool) (*Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("url invalide %q", rawURL)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/*,text/html;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("image trop volumineuse (> %d octets)", f.maxBytes)
	}

	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(body)
		ct, _, _ = mime.ParseMediaType(ct)
	}

	if strings.HasPrefix(ct, "image/") {
		return &Image{Data: body, ContentType: ct, Ext: extensionFor(ct, u.Path), SourceURL: u.String()}, nil
	}
	if ct == "text/html" && followPage {
		next, err := imageFromPage(u, body)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("page", u.String()).Str("image", next).Msg("image résolue depuis la page")
		return f.fetch(ctx, next, false)
	}
	return nil, fmt.Errorf("%w (%s)", ErrNotImage, ct)
}

func imageFromPage(base *url.URL, body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	candidate := ""
	if og, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		candidate = strings.TrimSpace(og)
	}
	if candidate == "" {
		doc.Find("img[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			src, _ := sel.Attr("src")
			lower := strings.ToLower(src)
			if src == "" || strings.Contains(lower, "logo") || strings.Contains(lower, "icon") {
				return true
			}
			candidate = strings.TrimSpace(src)
			return false
		})
	}
	if candidate == "" {
		return "", fmt.Errorf("%w: aucune image dans la page", ErrNotImage)
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func extensionFor(contentType, urlPath string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if ext := strings.ToLower(path.Ext(urlPath)); ext != "" && len(ext) <= 5 {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}
