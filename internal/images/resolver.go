// Package images picks a representative image for a news entry.
package images

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bilgisen/nnews/internal/cache"
	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/models"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

// Resolver looks for an image in entry metadata, then in embedded HTML, then
// on the linked page. Every step is best effort; a miss returns "".
type Resolver struct {
	fetcher     feed.PageFetcher
	memo        cache.ImageCache
	memoTTL     time.Duration
	pageTimeout time.Duration
	log         zerolog.Logger
}

type Config struct {
	MemoTTL     time.Duration
	PageTimeout time.Duration
}

func NewResolver(fetcher feed.PageFetcher, memo cache.ImageCache, cfg Config, log zerolog.Logger) *Resolver {
	return &Resolver{
		fetcher:     fetcher,
		memo:        memo,
		memoTTL:     cfg.MemoTTL,
		pageTimeout: cfg.PageTimeout,
		log:         log,
	}
}

// Resolve runs the full lookup order for a feed entry of src.
func (r *Resolver) Resolve(ctx context.Context, entry *gofeed.Item, src models.SourceConfig) string {
	base := src.BaseURL
	if base == "" {
		base = entry.Link
	}

	if img := FromEntry(entry); img != "" {
		return Absolute(base, img)
	}

	for _, html := range []string{entry.Description, entry.Content} {
		if img := FromHTML(html); img != "" {
			return Absolute(base, img)
		}
	}

	if src.Image.FetchPage && entry.Link != "" {
		return r.FromPage(ctx, entry.Link, base, src.Image.Selectors)
	}
	return ""
}

// FromEntry reads structured media metadata: media:content, an image
// enclosure, media:thumbnail, then the feed-level item image.
func FromEntry(entry *gofeed.Item) string {
	if entry == nil {
		return ""
	}

	if media, ok := entry.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			if u := ext.Attrs["url"]; u != "" && isImageMedia(ext.Attrs["type"], ext.Attrs["medium"]) {
				return u
			}
		}
		for _, group := range media["group"] {
			for _, ext := range group.Children["content"] {
				if u := ext.Attrs["url"]; u != "" && isImageMedia(ext.Attrs["type"], ext.Attrs["medium"]) {
					return u
				}
			}
		}
	}

	for _, enc := range entry.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			return enc.URL
		}
	}

	if media, ok := entry.Extensions["media"]; ok {
		for _, ext := range media["thumbnail"] {
			if u := ext.Attrs["url"]; u != "" {
				return u
			}
		}
	}

	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	return ""
}

func isImageMedia(mimeType, medium string) bool {
	if mimeType == "" && medium == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(mimeType), "image/") || strings.EqualFold(medium, "image")
}

// FromHTML returns the src of the first <img> in an HTML fragment.
func FromHTML(html string) string {
	if !strings.Contains(html, "<img") && !strings.Contains(html, "<IMG") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

// FromPage fetches pageURL and reads the image from the per-source selectors,
// then og:image and twitter:image. Results, misses included, are memoized.
func (r *Resolver) FromPage(ctx context.Context, pageURL, base string, selectors []models.Selector) string {
	if r.memo != nil {
		if img, found, err := r.memo.GetImage(ctx, pageURL); err != nil {
			r.log.Debug().Err(err).Str("url", pageURL).Msg("Image memo lookup failed")
		} else if found {
			return img
		}
	}

	img, err := r.lookupPage(ctx, pageURL, base, selectors)
	if err != nil {
		r.log.Debug().Err(err).Str("url", pageURL).Msg("Page image lookup failed")
		return ""
	}

	if r.memo != nil {
		if err := r.memo.SetImage(ctx, pageURL, img, r.memoTTL); err != nil {
			r.log.Debug().Err(err).Str("url", pageURL).Msg("Image memo store failed")
		}
	}
	return img
}

func (r *Resolver) lookupPage(ctx context.Context, pageURL, base string, selectors []models.Selector) (string, error) {
	body, err := r.fetcher.Get(ctx, feed.Request{URL: pageURL, Timeout: r.pageTimeout})
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse page %s: %w", pageURL, err)
	}

	if base == "" {
		base = pageURL
	}
	if img := FromDocument(doc, selectors); img != "" {
		return Absolute(base, img), nil
	}
	return "", nil
}

// FromDocument applies selectors in order, then the Open Graph and Twitter meta tags.
func FromDocument(doc *goquery.Document, selectors []models.Selector) string {
	for _, sel := range selectors {
		node := doc.Find(sel.CSS).First()
		if node.Length() == 0 {
			continue
		}
		var v string
		if sel.Attr == "" {
			v = node.Text()
		} else {
			v, _ = node.Attr(sel.Attr)
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	for _, meta := range []string{
		`meta[property="og:image"]`,
		`meta[property="og:image:secure_url"]`,
		`meta[name="twitter:image"]`,
		`meta[name="twitter:image:src"]`,
	} {
		if v, ok := doc.Find(meta).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Absolute resolves ref against base. Unparsable input is returned unchanged.
func Absolute(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == "" {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
