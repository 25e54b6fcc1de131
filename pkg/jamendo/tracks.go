package jamendo

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// TrackService provides track search and download operations.
type TrackService struct {
	client *Client
}

// SearchRequest is a track search query.
type SearchRequest struct {
	// Query is the free-text search term.
	Query string

	// Tags restricts results to tracks carrying all of the given tags
	// (e.g., "instrumental").
	Tags []string

	// Limit is the maximum number of results (default 10).
	Limit int
}

// MusicInfo carries the analysis metadata Jamendo attaches to tracks.
type MusicInfo struct {
	BPM  float64 `json:"bpm"`
	Tags struct {
		Genres []string `json:"genres"`
	} `json:"tags"`
}

// Track is a searchable Jamendo track.
type Track struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ArtistName string    `json:"artist_name"`
	Duration   int       `json:"duration"` // seconds
	Audio      string    `json:"audio"`    // streamable mp3 URL
	AudioDL    string    `json:"audiodownload"`
	MusicInfo  MusicInfo `json:"musicinfo"`
}

// Search searches for tracks matching the request.
func (s *TrackService) Search(ctx context.Context, req *SearchRequest) ([]Track, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("search", req.Query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("include", "musicinfo")
	params.Set("audioformat", "mp3")
	params.Set("audiodlformat", "mp32")
	if len(req.Tags) > 0 {
		params.Set("tags", strings.Join(req.Tags, "+"))
	}

	var tracks []Track
	if err := s.client.http.get(ctx, "/tracks/", params, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// Download streams the track's mp3 audio into w.
func (s *TrackService) Download(ctx context.Context, track *Track, w io.Writer) error {
	return s.client.http.download(ctx, track.Audio, w)
}
