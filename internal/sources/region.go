package sources

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/models"
)

// RegionChecker fetches an article page and decides whether it belongs to
// the target region according to a RegionRule.
type RegionChecker struct {
	fetcher feed.PageFetcher
	timeout time.Duration

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func NewRegionChecker(fetcher feed.PageFetcher, timeout time.Duration) *RegionChecker {
	return &RegionChecker{
		fetcher:  fetcher,
		timeout:  timeout,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Check reports whether the page at pageURL matches rule. A fetch or parse
// failure is returned as an error; the caller applies rule.FailOpen.
func (c *RegionChecker) Check(ctx context.Context, pageURL string, rule *models.RegionRule) (bool, error) {
	body, err := c.fetcher.Get(ctx, feed.Request{URL: pageURL, Timeout: c.timeout})
	if err != nil {
		return false, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrParse, pageURL, err)
	}

	if rule.Selector != "" {
		if node := doc.Find(rule.Selector).First(); node.Length() > 0 {
			region := strings.TrimSpace(node.Text())
			region = strings.TrimSpace(strings.TrimPrefix(region, rule.Prefix))
			return containsAny(strings.ToLower(region), rule.Keywords), nil
		}
	}

	text := strings.ToLower(doc.Text())
	if rule.Pattern == "" {
		return containsAny(text, rule.Keywords), nil
	}

	re, err := c.compile(rule.Pattern)
	if err != nil {
		return false, fmt.Errorf("%w: region pattern: %v", ErrValidation, err)
	}
	return re.MatchString(text), nil
}

func (c *RegionChecker) compile(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if re, ok := c.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	c.patterns[pattern] = re
	return re, nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
