package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewsItemImageField(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	item := NewsItem{
		ID:        "id-1",
		Title:     "Заголовок",
		SourceURL: "https://example.com/news/1",
		RawDate:   now,
		Source:    SourceRef{ID: "vremyan", Name: "Время Н", Type: "RSS"},
		Platform:  PlatformRSS,
	}

	data, err := json.Marshal(item)
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &result))

	// A missing image must serialize as null, not as an empty string.
	v, ok := result["imageUrl"]
	require.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, "rss", result["platform"])
	assert.Equal(t, false, result["isLiked"])

	item.ImageURL = StringPtr("https://example.com/a.jpg")
	data, err = json.Marshal(item)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "https://example.com/a.jpg", result["imageUrl"])
	assert.True(t, item.HasImage())
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	require.NotNil(t, StringPtr("x"))
	assert.Equal(t, "x", *StringPtr("x"))
}

func TestCandidateURLs(t *testing.T) {
	src := SourceConfig{
		URL:           "https://www.niann.ru/rss.xml",
		BaseURL:       "https://www.niann.ru/",
		FallbackPaths: []string{"/rss.xml", "feed/", "/rss/"},
	}

	assert.Equal(t, []string{
		"https://www.niann.ru/rss.xml",
		"https://www.niann.ru/feed/",
		"https://www.niann.ru/rss/",
	}, src.CandidateURLs())

	noBase := SourceConfig{URL: "https://tass.ru/rss/v2.xml", FallbackPaths: []string{"/feed/"}}
	assert.Equal(t, []string{"https://tass.ru/rss/v2.xml"}, noBase.CandidateURLs())
}

func TestSourceConfigIsEnabled(t *testing.T) {
	off := false
	assert.True(t, SourceConfig{}.IsEnabled())
	assert.False(t, SourceConfig{Enabled: &off}.IsEnabled())
	assert.Equal(t, "Telegram", SourceTypeTelegram.Label())
	assert.Equal(t, "RSS", SourceTypeRSS.Label())
}
