package models

// Comment is the trimmed DTO returned to the frontend for a single comment or reply.
type Comment struct {
	Author      string    `json:"author"`
	Date        string    `json:"date"`         // "2006-01-02 15:04" in UTC
	PublishedAt string    `json:"published_at"` // RFC3339 as reported upstream
	Text        string    `json:"text"`
	Likes       int64     `json:"likes"`
	ReplyCount  int64     `json:"reply_count"`
	IsReply     bool      `json:"is_reply"`
	Replies     []Comment `json:"replies,omitempty"`
}

// CommentPage is one page of comment threads for a video.
// NextPageToken is only present when upstream reports more results.
type CommentPage struct {
	Status        string    `json:"status"`
	VideoID       string    `json:"video_id"`
	NextPageToken string    `json:"next_page_token,omitempty"`
	TotalResults  int64     `json:"total_results"`
	Comments      []Comment `json:"comments"`
}

// SearchRequest is the body of the keyword-filter endpoint. Comments are
// passed through to the model untouched.
type SearchRequest struct {
	Keyword  string `json:"keyword"`
	Comments []any  `json:"comments"`
}
