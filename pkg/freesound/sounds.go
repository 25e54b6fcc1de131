package freesound

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
)

// SoundService provides sound search and download operations.
type SoundService struct {
	client *Client
}

// SearchRequest is a text search query.
type SearchRequest struct {
	// Query is the free-text search term.
	Query string

	// Filter is a Freesound filter expression, e.g.
	// "duration:[60 TO 300] type:mp3".
	Filter string

	// PageSize is the number of results per page (default 10).
	PageSize int
}

// Previews holds the preview URLs for a sound.
type Previews struct {
	HQMP3 string `json:"preview-hq-mp3"`
	LQMP3 string `json:"preview-lq-mp3"`
}

// Sound is a Freesound search result.
type Sound struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Duration float64  `json:"duration"` // seconds
	Download string   `json:"download"` // original-quality URL (OAuth2)
	Previews Previews `json:"previews"`
	Tags     []string `json:"tags"`
}

// searchResults is the paginated search envelope.
type searchResults struct {
	Count   int     `json:"count"`
	Results []Sound `json:"results"`
}

// Search performs a text search.
func (s *SoundService) Search(ctx context.Context, req *SearchRequest) ([]Sound, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("fields", "id,name,username,duration,download,previews,tags")
	params.Set("page_size", strconv.Itoa(pageSize))
	if req.Filter != "" {
		params.Set("filter", req.Filter)
	}

	var results searchResults
	if err := s.client.http.get(ctx, "/search/text/", params, &results); err != nil {
		return nil, err
	}
	return results.Results, nil
}

// DurationFilter builds a filter expression restricting duration (seconds)
// and limiting results to mp3 sources.
func DurationFilter(minSec, maxSec int) string {
	return fmt.Sprintf("duration:[%d TO %d] type:mp3", minSec, maxSec)
}

// DownloadPreview streams the sound's HQ mp3 preview into w. This works with
// plain token authentication.
func (s *SoundService) DownloadPreview(ctx context.Context, sound *Sound, w io.Writer) error {
	return s.client.http.download(ctx, sound.Previews.HQMP3, w)
}

// DownloadOriginal streams the sound's original-quality file into w. The
// client must be configured with an OAuth2 token source.
func (s *SoundService) DownloadOriginal(ctx context.Context, sound *Sound, w io.Writer) error {
	return s.client.http.downloadOAuth(ctx, sound.Download, w)
}
