// Package youtube fetches comment threads from the YouTube Data API.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"example/comment-search-api/app/models"
)

const DefaultPageSize = 100

var (
	ErrUpstream     = errors.New("youtube: upstream error")
	ErrMissingVideo = errors.New("youtube: video id is required")
)

// dateLayout is the display format used by the frontend.
const dateLayout = "2006-01-02 15:04"

type Client struct {
	svc      *yt.Service
	pageSize int64
}

// New builds a client with an API key. Extra options are appended, which
// lets tests point the client at a fake endpoint.
func New(ctx context.Context, apiKey string, pageSize int64, opts ...option.ClientOption) (*Client, error) {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}
	return &Client{svc: svc, pageSize: pageSize}, nil
}

// FetchPage returns one page of comment threads, newest first. An empty
// pageToken requests the first page.
func (c *Client) FetchPage(ctx context.Context, videoID, pageToken string) (models.CommentPage, error) {
	if videoID == "" {
		return models.CommentPage{}, ErrMissingVideo
	}

	call := c.svc.CommentThreads.List([]string{"snippet", "replies"}).
		VideoId(videoID).
		Order("time").
		TextFormat("plainText").
		MaxResults(c.pageSize)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return models.CommentPage{}, fmt.Errorf("%w: list comment threads for %s: %w", ErrUpstream, videoID, err)
	}

	page := models.CommentPage{
		Status:        "success",
		VideoID:       videoID,
		NextPageToken: resp.NextPageToken,
		Comments:      make([]models.Comment, 0, len(resp.Items)),
	}
	if resp.PageInfo != nil {
		page.TotalResults = resp.PageInfo.TotalResults
	}

	for _, item := range resp.Items {
		if item.Snippet == nil || item.Snippet.TopLevelComment == nil {
			continue
		}
		top := toComment(item.Snippet.TopLevelComment, false)
		top.ReplyCount = item.Snippet.TotalReplyCount
		top.Replies = []models.Comment{}
		if item.Replies != nil {
			for _, r := range item.Replies.Comments {
				top.Replies = append(top.Replies, toComment(r, true))
			}
		}
		page.Comments = append(page.Comments, top)
	}
	return page, nil
}

func toComment(c *yt.Comment, isReply bool) models.Comment {
	out := models.Comment{IsReply: isReply}
	if c == nil || c.Snippet == nil {
		return out
	}
	s := c.Snippet
	out.Author = s.AuthorDisplayName
	out.PublishedAt = s.PublishedAt
	out.Date = formatDate(s.PublishedAt)
	out.Text = s.TextDisplay
	if out.Text == "" {
		out.Text = s.TextOriginal
	}
	out.Likes = s.LikeCount
	return out
}

func formatDate(published string) string {
	t, err := time.Parse(time.RFC3339, published)
	if err != nil {
		return published
	}
	return t.UTC().Format(dateLayout)
}
