package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/model"
	"github.com/civicforum/constitution-platform/internal/repository"
)

const (
	DefaultPollID       = 1
	DefaultPollQuestion = "Do you agree with the current policy?"
	MinPollOptions      = 2
	MaxPollOptions      = 10
	MaxQuestionLength   = 300
)

// PollService runs the community polls. Every user gets one vote per poll.
// Only Experts create polls, and only the creating Expert may delete one.
type PollService struct {
	polls  repository.PollRepository
	now    func() time.Time
	logger *slog.Logger
}

func NewPollService(polls repository.PollRepository, logger *slog.Logger) *PollService {
	return &PollService{polls: polls, now: time.Now, logger: logger}
}

// SetClock replaces the time source used to decide whether a poll has ended.
func (s *PollService) SetClock(now func() time.Time) {
	s.now = now
}

// PollListing is the active polls plus the caller's own votes, if known.
type PollListing struct {
	Polls     []model.Poll     `json:"polls"`
	UserVotes []model.PollVote `json:"userVotes"`
}

// EnsureDefaultPoll creates poll 1 (Agree/Disagree) when it does not exist.
// A deactivated poll 1 counts as existing.
func (s *PollService) EnsureDefaultPoll(ctx context.Context) error {
	_, err := s.polls.GetPoll(ctx, DefaultPollID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("checking default poll: %w", err)
	}

	poll := &model.Poll{
		ID:        DefaultPollID,
		Question:  DefaultPollQuestion,
		CreatedBy: "system",
		Options:   []model.PollOption{{Text: "Agree"}, {Text: "Disagree"}},
	}
	if err := s.polls.CreatePoll(ctx, poll); err != nil {
		// Lost a race with another process creating it.
		if errors.Is(err, apperror.ErrConflict) {
			return nil
		}
		return fmt.Errorf("creating default poll: %w", err)
	}

	s.logger.Info("default poll created")
	return nil
}

// ListActive returns active polls newest first. When user is non-nil the
// listing also carries the polls that user already voted on.
func (s *PollService) ListActive(ctx context.Context, user *model.User) (*PollListing, error) {
	polls, err := s.polls.ListActivePolls(ctx)
	if err != nil {
		return nil, err
	}

	listing := &PollListing{Polls: polls, UserVotes: []model.PollVote{}}
	if user != nil {
		if listing.UserVotes, err = s.polls.ListVotesByUser(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return listing, nil
}

// Get returns an active poll. Deactivated polls are reported as not found.
func (s *PollService) Get(ctx context.Context, pollID int64) (*model.Poll, error) {
	poll, err := s.polls.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.IsActive {
		return nil, apperror.NotFound("poll", strconv.FormatInt(pollID, 10))
	}
	return poll, nil
}

// Vote records user's choice and returns the updated poll.
func (s *PollService) Vote(ctx context.Context, user *model.User, pollID int64, optionID int) (*model.Poll, error) {
	if user == nil {
		return nil, apperror.Unauthenticated("a signed-in user is required to vote")
	}

	poll, err := s.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.Ended(s.now()) {
		return nil, apperror.Conflict("this poll has ended")
	}
	if poll.Option(optionID) == nil {
		return nil, apperror.NotFound("poll option", strconv.Itoa(optionID))
	}

	updated, err := s.polls.CastPollVote(ctx, &model.PollVote{
		PollID:   pollID,
		UserID:   user.ID,
		OptionID: optionID,
		VotedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("poll vote recorded",
		slog.Int64("pollId", pollID),
		slog.Int("optionId", optionID),
	)
	return updated, nil
}

// Create opens a new poll. Only Experts may create polls.
func (s *PollService) Create(ctx context.Context, user *model.User, question string, options []string, endsAt *time.Time) (*model.Poll, error) {
	if user == nil {
		return nil, apperror.Unauthenticated("a signed-in user is required to create polls")
	}
	if user.Role != model.RoleExpert {
		return nil, apperror.Forbidden("only Experts can create polls")
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperror.ValidationFailed("question", "question is required")
	}
	if len([]rune(question)) > MaxQuestionLength {
		return nil, apperror.ValidationFailed("question",
			fmt.Sprintf("question must be %d characters or less", MaxQuestionLength))
	}

	var opts []model.PollOption
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, model.PollOption{Text: o})
		}
	}
	if len(opts) < MinPollOptions {
		return nil, apperror.ValidationFailed("options",
			fmt.Sprintf("at least %d non-empty options are required", MinPollOptions))
	}
	if len(opts) > MaxPollOptions {
		return nil, apperror.ValidationFailed("options",
			fmt.Sprintf("at most %d options are allowed", MaxPollOptions))
	}
	if endsAt != nil && !endsAt.After(s.now()) {
		return nil, apperror.ValidationFailed("endTime", "end time must be in the future")
	}

	poll := &model.Poll{
		Question:  question,
		Options:   opts,
		CreatedBy: user.UserID,
		EndsAt:    endsAt,
	}
	if err := s.polls.CreatePoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("creating poll: %w", err)
	}

	s.logger.Info("poll created",
		slog.Int64("pollId", poll.ID),
		slog.String("createdBy", user.UserID),
	)
	return poll, nil
}

// Delete deactivates a poll. Only the Expert who created it may do so.
func (s *PollService) Delete(ctx context.Context, user *model.User, pollID int64) error {
	if user == nil {
		return apperror.Unauthenticated("a signed-in user is required to delete polls")
	}
	if user.Role != model.RoleExpert {
		return apperror.Forbidden("only Experts can delete polls")
	}

	poll, err := s.polls.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.CreatedBy != user.UserID {
		return apperror.Forbidden("you can only delete your own polls")
	}

	if err := s.polls.DeactivatePoll(ctx, pollID); err != nil {
		return err
	}

	s.logger.Info("poll deleted", slog.Int64("pollId", pollID))
	return nil
}
