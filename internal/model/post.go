package model

import (
	"fmt"
	"time"
)

// Stance is the direction of a Response.
type Stance string

const (
	StanceAgree    Stance = "agree"
	StanceDisagree Stance = "disagree"
)

// Valid reports whether s is agree or disagree.
func (s Stance) Valid() bool {
	return s == StanceAgree || s == StanceDisagree
}

// PostIDPrefix is prepended to the store sequence to build display ids.
const PostIDPrefix = "pld-"

// FormatPostID turns a store sequence number into the display id, e.g. 7 → "pld-7".
func FormatPostID(seq int64) string {
	return fmt.Sprintf("%s%d", PostIDPrefix, seq)
}

// Post is one opinion attached to one constitutional article by one author.
//
// Seq is the storage sequence the display id is derived from. AuthorID is the
// author's internal id; AuthorUserID is the public code, denormalized for
// display the same way ArticleTitle is.
type Post struct {
	Seq           int64     `json:"-"`
	PostID        string    `json:"postId"`
	AuthorID      string    `json:"-"`
	AuthorUserID  string    `json:"userId"`
	ArticleNumber string    `json:"articleNumber"`
	ArticleTitle  string    `json:"articleTitle"`
	Content       string    `json:"content"`
	AgreeCount    int       `json:"agreeCount"`
	DisagreeCount int       `json:"disagreeCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Response is a single user's agree/disagree vote on a post.
// At most one exists per (post, user); responses are never edited or removed.
type Response struct {
	PostID      string    `json:"postId"`
	UserID      string    `json:"-"`
	VoterUserID string    `json:"userId"`
	Stance      Stance    `json:"stance"`
	RespondedAt time.Time `json:"respondedAt"`
}

// Counters is what a successful vote returns.
type Counters struct {
	AgreeCount    int `json:"agreeCount"`
	DisagreeCount int `json:"disagreeCount"`
}

// PostStats summarises engagement on a post.
// TotalResponses is always AgreeCount + DisagreeCount.
type PostStats struct {
	PostID         string `json:"postId"`
	AgreeCount     int    `json:"agreeCount"`
	DisagreeCount  int    `json:"disagreeCount"`
	TotalResponses int    `json:"totalResponses"`
	CommentCount   int    `json:"commentCount"`
}

// TrendingPost is the display projection returned by the trending ranking.
type TrendingPost struct {
	PostID          string `json:"postId"`
	AuthorUserID    string `json:"userId"`
	ArticleNumber   string `json:"articleNumber"`
	ArticleTitle    string `json:"articleTitle"`
	Content         string `json:"content"`
	AgreeCount      int    `json:"agreeCount"`
	DisagreeCount   int    `json:"disagreeCount"`
	RecentResponses int    `json:"recentResponses"`
}

// Comment is a free-text reply attached to a post.
type Comment struct {
	ID           string    `json:"id"`
	PostID       string    `json:"postId"`
	AuthorID     string    `json:"-"`
	AuthorUserID string    `json:"userId"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
}
