package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/auth"
	"github.com/civicforum/constitution-platform/internal/model"
	"github.com/civicforum/constitution-platform/internal/service"
)

// PostHandler exposes the engagement engine: posts, agree/disagree votes,
// stats, comments and the trending ranking.
//
// Response envelopes follow the web client's expectations:
//
//	POST /api/posts            → 201 {"message": "...", "post": {...}}
//	GET  /api/posts            → 200 {"posts": [...]}
//	POST /api/posts/{id}/agree → 200 {"message": "...", "agreeCount": 1, "disagreeCount": 0}
type PostHandler struct {
	engagement *service.EngagementService
	logger     *slog.Logger
}

func NewPostHandler(engagement *service.EngagementService, logger *slog.Logger) *PostHandler {
	return &PostHandler{engagement: engagement, logger: logger}
}

type createPostRequest struct {
	ArticleNumber string `json:"articleNumber" validate:"required"`
	ArticleTitle  string `json:"articleTitle" validate:"required"`
	Content       string `json:"content" validate:"required"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required"`
}

type postsResponse struct {
	Posts []model.Post `json:"posts"`
}

// HandleCreate creates a post authored by the bearer's user.
//
// HTTP: POST /api/posts
// Auth: Required
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("a signed-in user is required to post"))
		return
	}

	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.engagement.CreatePost(r.Context(), user.ID, req.ArticleNumber, req.ArticleTitle, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	post.AuthorUserID = user.UserID

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Post created successfully",
		"post":    post,
	})
}

// HandleList returns every post, newest first.
//
// HTTP: GET /api/posts
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.engagement.ListPosts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postsResponse{Posts: posts})
}

// HandleGet returns one post.
//
// HTTP: GET /api/posts/{postId}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.engagement.GetPost(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": post})
}

// HandleListByArticle filters posts by article number.
//
// HTTP: GET /api/posts/article/{articleNumber}
func (h *PostHandler) HandleListByArticle(w http.ResponseWriter, r *http.Request) {
	posts, err := h.engagement.ListByArticle(r.Context(), chi.URLParam(r, "articleNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postsResponse{Posts: posts})
}

// HandleListByUser returns the posts of a user given their public userId.
//
// HTTP: GET /api/posts/user/{userId}
func (h *PostHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	posts, err := h.engagement.ListByAuthorUserID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts":  posts,
		"count":  len(posts),
		"userId": userID,
	})
}

// HandleMyPosts returns the bearer's own posts.
//
// HTTP: GET /api/my-posts
// Auth: Required
func (h *PostHandler) HandleMyPosts(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("a signed-in user is required"))
		return
	}

	posts, err := h.engagement.ListByAuthor(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts":  posts,
		"count":  len(posts),
		"userId": user.UserID,
	})
}

// HandleAgree and HandleDisagree cast the bearer's single response on a post.
//
// HTTP: POST /api/posts/{postId}/agree
// HTTP: POST /api/posts/{postId}/disagree
// Auth: Required
func (h *PostHandler) HandleAgree(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, model.StanceAgree, "Successfully agreed")
}

func (h *PostHandler) HandleDisagree(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, model.StanceDisagree, "Successfully disagreed")
}

func (h *PostHandler) vote(w http.ResponseWriter, r *http.Request, stance model.Stance, message string) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("a signed-in user is required to vote"))
		return
	}

	counters, err := h.engagement.CastVote(r.Context(), chi.URLParam(r, "postId"), user.ID, stance)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       message,
		"agreeCount":    counters.AgreeCount,
		"disagreeCount": counters.DisagreeCount,
	})
}

// HandleHasResponded tells the client whether to disable the vote buttons.
//
// HTTP: GET /api/posts/{postId}/responded
// Auth: Required
func (h *PostHandler) HandleHasResponded(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("a signed-in user is required"))
		return
	}

	responded, err := h.engagement.HasResponded(r.Context(), chi.URLParam(r, "postId"), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hasResponded": responded})
}

// HandleStats returns the counters of a post.
//
// HTTP: GET /api/posts/{postId}/stats
func (h *PostHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engagement.GetStats(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// HandleResponses lists the responses on a post in the order they were cast.
//
// HTTP: GET /api/posts/{postId}/responses
func (h *PostHandler) HandleResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.engagement.ListResponses(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": responses})
}

// HandleAddComment attaches a free-text comment to a post.
//
// HTTP: POST /api/posts/{postId}/comments
// Auth: Required
func (h *PostHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("a signed-in user is required to comment"))
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.engagement.AddComment(r.Context(), chi.URLParam(r, "postId"), user.ID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Comment added",
		"comment": comment,
	})
}

// HandleListComments lists a post's comments, oldest first.
//
// HTTP: GET /api/posts/{postId}/comments
func (h *PostHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.engagement.ListComments(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// HandleTrending returns posts ranked by responses in the last 48 hours.
//
// HTTP: GET /api/trending-posts (also /api/posts/trending)
func (h *PostHandler) HandleTrending(w http.ResponseWriter, r *http.Request) {
	trending, err := h.engagement.Trending(r.Context())
	if err != nil {
		h.logger.Error("trending failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": trending})
}
