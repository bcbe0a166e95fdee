package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/auth"
	"github.com/civicforum/constitution-platform/internal/service"
)

// PollHandler serves the community polls under /api/vote.
type PollHandler struct {
	polls  *service.PollService
	logger *slog.Logger
}

func NewPollHandler(polls *service.PollService, logger *slog.Logger) *PollHandler {
	return &PollHandler{polls: polls, logger: logger}
}

type pollVoteRequest struct {
	PollID   int64 `json:"pollId" validate:"required,min=1"`
	OptionID int   `json:"optionId" validate:"required,min=1"`
}

type createPollRequest struct {
	Question string     `json:"question" validate:"required"`
	Options  []string   `json:"options" validate:"required"`
	EndTime  *time.Time `json:"endTime"`
}

// HandleList returns the active polls, plus the caller's votes when a bearer
// is present.
//
// HTTP: GET /api/vote
// Auth: Optional
func (h *PollHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	listing, err := h.polls.ListActive(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleGet returns one active poll.
//
// HTTP: GET /api/vote/{pollId}
func (h *PollHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	poll, err := h.polls.Get(r.Context(), pollID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"poll": poll})
}

// HandleVote casts the bearer's single vote on a poll.
//
// HTTP: POST /api/vote
// Auth: Required
func (h *PollHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("a signed-in user is required to vote"))
		return
	}

	var req pollVoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	poll, err := h.polls.Vote(r.Context(), user, req.PollID, req.OptionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Vote recorded",
		"poll":    poll,
	})
}

// HandleCreate opens a new poll. Experts only.
//
// HTTP: POST /api/vote/create
// Auth: Required
func (h *PollHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("a signed-in user is required to create polls"))
		return
	}

	var req createPollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	poll, err := h.polls.Create(r.Context(), user, req.Question, req.Options, req.EndTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Poll created successfully",
		"poll":    poll,
	})
}

// HandleDelete deactivates a poll. Only its creator may do so.
//
// HTTP: DELETE /api/vote/{pollId}
// Auth: Required
func (h *PollHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("a signed-in user is required to delete polls"))
		return
	}

	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.polls.Delete(r.Context(), user, pollID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Poll deleted successfully"})
}

func pollIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "pollId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperror.ValidationFailed("pollId", "poll id must be a positive integer")
	}
	return id, nil
}
