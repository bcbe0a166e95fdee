// Package repository declares the storage contracts the services depend on.
//
// Services only ever see these interfaces. The sqlite package provides the
// production implementation; service tests use in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/civicforum/constitution-platform/internal/model"
)

// PostFilter narrows ListPosts. Zero fields match everything.
type PostFilter struct {
	ArticleNumber string
	AuthorID      string
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByUserID(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, password string) error
	LinkGoogle(ctx context.Context, id, googleID, picture string) error
}

// PostRepository owns posts, their responses and comments.
//
// AddResponse must apply the response insert and the counter increment as one
// atomic unit and reject a second response by the same user with
// apperror.ErrConflict.
type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, postID string) (*model.Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error)

	AddResponse(ctx context.Context, resp *model.Response) (model.Counters, error)
	HasResponded(ctx context.Context, postID, userID string) (bool, error)
	ListResponses(ctx context.Context, postID string) ([]model.Response, error)
	Stats(ctx context.Context, postID string) (*model.PostStats, error)
	Trending(ctx context.Context, since time.Time) ([]model.TrendingPost, error)

	AddComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, postID string) ([]model.Comment, error)
}

// PollRepository owns polls and the one-vote-per-user ledger.
type PollRepository interface {
	CreatePoll(ctx context.Context, poll *model.Poll) error
	GetPoll(ctx context.Context, id int64) (*model.Poll, error)
	ListActivePolls(ctx context.Context) ([]model.Poll, error)
	DeactivatePoll(ctx context.Context, id int64) error
	CastPollVote(ctx context.Context, vote *model.PollVote) (*model.Poll, error)
	ListVotesByUser(ctx context.Context, userID string) ([]model.PollVote, error)
}
