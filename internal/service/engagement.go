// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests can pass
// hand-written fakes and the same logic serves both the HTTP server and
// the civicctl command.
package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/model"
	"github.com/civicforum/constitution-platform/internal/repository"
)

// Validation limits for user-authored text. Lengths are counted in runes
// after sanitizing.
const (
	MaxContentLength       = 5000
	MaxArticleNumberLength = 20
	MaxArticleTitleLength  = 200
	MaxCommentLength       = 2000
)

// TrendingWindow is how far back a response still counts towards trending.
const TrendingWindow = 48 * time.Hour

// EngagementService owns posts and everything that mutates their vote state:
// creating posts, casting agree/disagree responses, stats and the trending
// ranking.
type EngagementService struct {
	posts     repository.PostRepository
	users     repository.UserRepository
	sanitizer *bluemonday.Policy
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngagementService creates an EngagementService.
func NewEngagementService(posts repository.PostRepository, users repository.UserRepository, logger *slog.Logger) *EngagementService {
	return &EngagementService{
		posts: posts,
		users: users,
		// Posts are plain text. StrictPolicy strips every tag.
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock replaces the time source. Tests use it to pin "now".
func (s *EngagementService) SetClock(now func() time.Time) {
	s.now = now
}

// plainText strips markup from user-authored text. The policy escapes what
// it keeps, so the result is unescaped back to the characters the user typed
// before any length check.
func (s *EngagementService) plainText(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(v)))
}

// CreatePost validates and stores a new post with zero counters.
//
// authorID is the author's internal id, resolved by the caller from the
// bearer. The display id (pld-<n>) is assigned by the store.
func (s *EngagementService) CreatePost(ctx context.Context, authorID, articleNumber, articleTitle, content string) (*model.Post, error) {
	authorID = strings.TrimSpace(authorID)
	articleNumber = strings.TrimSpace(articleNumber)
	articleTitle = strings.TrimSpace(articleTitle)
	content = s.plainText(content)

	if authorID == "" {
		return nil, apperror.ValidationFailed("userId", "author is required")
	}
	if articleNumber == "" {
		return nil, apperror.ValidationFailed("articleNumber", "article number is required")
	}
	if utf8.RuneCountInString(articleNumber) > MaxArticleNumberLength {
		return nil, apperror.ValidationFailed("articleNumber",
			fmt.Sprintf("article number must be %d characters or less", MaxArticleNumberLength))
	}
	if articleTitle == "" {
		return nil, apperror.ValidationFailed("articleTitle", "article title is required")
	}
	if utf8.RuneCountInString(articleTitle) > MaxArticleTitleLength {
		return nil, apperror.ValidationFailed("articleTitle",
			fmt.Sprintf("article title must be %d characters or less", MaxArticleTitleLength))
	}
	if content == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}

	post := &model.Post{
		AuthorID:      authorID,
		ArticleNumber: articleNumber,
		ArticleTitle:  articleTitle,
		Content:       content,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.String("author", authorID),
			slog.String("article", articleNumber),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("postId", post.PostID),
		slog.String("article", post.ArticleNumber),
	)
	return post, nil
}

// CastVote records userID's stance on a post and returns the new counters.
//
// A user gets exactly one response per post. Any second attempt, including a
// change of stance, fails with apperror.ErrConflict and leaves the counters
// untouched. The store applies the duplicate check, the response insert and
// the counter increment as one atomic unit.
func (s *EngagementService) CastVote(ctx context.Context, postID, userID string, stance model.Stance) (model.Counters, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return model.Counters{}, apperror.ValidationFailed("postId", "post ID is required")
	}
	if userID == "" {
		return model.Counters{}, apperror.Unauthenticated("a signed-in user is required to vote")
	}
	if !stance.Valid() {
		return model.Counters{}, apperror.ValidationFailed("stance",
			fmt.Sprintf("stance must be %q or %q", model.StanceAgree, model.StanceDisagree))
	}

	counters, err := s.posts.AddResponse(ctx, &model.Response{
		PostID:      postID,
		UserID:      userID,
		Stance:      stance,
		RespondedAt: s.now().UTC(),
	})
	if err != nil {
		return model.Counters{}, err
	}

	s.logger.Info("vote recorded",
		slog.String("postId", postID),
		slog.String("stance", string(stance)),
	)
	return counters, nil
}

// HasResponded reports whether userID already responded to the post.
func (s *EngagementService) HasResponded(ctx context.Context, postID, userID string) (bool, error) {
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return false, err
	}
	return s.posts.HasResponded(ctx, postID, userID)
}

// GetStats returns the counters of a post. TotalResponses is always
// AgreeCount + DisagreeCount.
func (s *EngagementService) GetStats(ctx context.Context, postID string) (*model.PostStats, error) {
	return s.posts.Stats(ctx, strings.TrimSpace(postID))
}

// ComputeTrending ranks posts by the number of responses received in the
// TrendingWindow ending at now. Posts without a response in the window are
// excluded; ties keep the older post first.
func (s *EngagementService) ComputeTrending(ctx context.Context, now time.Time) ([]model.TrendingPost, error) {
	since := now.Add(-TrendingWindow)
	trending, err := s.posts.Trending(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("computing trending posts: %w", err)
	}
	return trending, nil
}

// Trending is ComputeTrending at the service clock's current time.
func (s *EngagementService) Trending(ctx context.Context) ([]model.TrendingPost, error) {
	return s.ComputeTrending(ctx, s.now())
}

// ListPosts returns every post, newest first.
func (s *EngagementService) ListPosts(ctx context.Context) ([]model.Post, error) {
	return s.posts.ListPosts(ctx, repository.PostFilter{})
}

// GetPost fetches a post by display id.
func (s *EngagementService) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, apperror.ValidationFailed("postId", "post ID is required")
	}
	return s.posts.GetPost(ctx, postID)
}

// ListByArticle returns the posts on one article, newest first.
func (s *EngagementService) ListByArticle(ctx context.Context, articleNumber string) ([]model.Post, error) {
	articleNumber = strings.TrimSpace(articleNumber)
	if articleNumber == "" {
		return nil, apperror.ValidationFailed("articleNumber", "article number is required")
	}
	return s.posts.ListPosts(ctx, repository.PostFilter{ArticleNumber: articleNumber})
}

// ListByAuthor returns the posts written by the user with internal id authorID.
func (s *EngagementService) ListByAuthor(ctx context.Context, authorID string) ([]model.Post, error) {
	return s.posts.ListPosts(ctx, repository.PostFilter{AuthorID: authorID})
}

// ListByAuthorUserID is ListByAuthor keyed by the public userId.
func (s *EngagementService) ListByAuthorUserID(ctx context.Context, userID string) ([]model.Post, error) {
	user, err := s.users.GetByUserID(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	return s.ListByAuthor(ctx, user.ID)
}

// ListResponses returns the responses on a post in the order they were cast.
func (s *EngagementService) ListResponses(ctx context.Context, postID string) ([]model.Response, error) {
	return s.posts.ListResponses(ctx, strings.TrimSpace(postID))
}

// AddComment attaches a comment by authorID to a post.
func (s *EngagementService) AddComment(ctx context.Context, postID, authorID, text string) (*model.Comment, error) {
	text = s.plainText(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "comment text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, apperror.ValidationFailed("text",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	comment := &model.Comment{
		PostID:   strings.TrimSpace(postID),
		AuthorID: authorID,
		Text:     text,
	}
	if err := s.posts.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	if author, err := s.users.GetUserByID(ctx, authorID); err == nil {
		comment.AuthorUserID = author.UserID
	}
	return comment, nil
}

// ListComments returns a post's comments, oldest first.
func (s *EngagementService) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	return s.posts.ListComments(ctx, strings.TrimSpace(postID))
}
