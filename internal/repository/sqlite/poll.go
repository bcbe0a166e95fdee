package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/model"
	"github.com/civicforum/constitution-platform/internal/repository"
)

// compile-time check that *DB implements repository.PollRepository
var _ repository.PollRepository = (*DB)(nil)

// CreatePoll inserts a poll and its options. A non-zero poll.ID is kept
// (the seeded default poll is always id 1); otherwise SQLite assigns one.
// Option ids are renumbered 1..n and vote counts start at zero.
func (db *DB) CreatePoll(ctx context.Context, poll *model.Poll) error {
	poll.CreatedAt = time.Now().UTC()
	poll.IsActive = true

	return db.inTx(ctx, func(tx *sql.Tx) error {
		var id any
		if poll.ID != 0 {
			id = poll.ID
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO polls (id, question, created_by, is_active, ends_at, created_at)
			 VALUES (?, ?, ?, 1, ?, ?)`,
			id, poll.Question, poll.CreatedBy, poll.EndsAt, poll.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict(fmt.Sprintf("poll %d already exists", poll.ID))
			}
			return fmt.Errorf("sqlite: inserting poll: %w", err)
		}
		if poll.ID == 0 {
			if poll.ID, err = result.LastInsertId(); err != nil {
				return fmt.Errorf("sqlite: reading poll id: %w", err)
			}
		}

		for i := range poll.Options {
			poll.Options[i].ID = i + 1
			poll.Options[i].Votes = 0
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO poll_options (poll_id, option_id, text, votes) VALUES (?, ?, ?, 0)`,
				poll.ID, poll.Options[i].ID, poll.Options[i].Text,
			); err != nil {
				return fmt.Errorf("sqlite: inserting poll option %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// GetPoll retrieves a poll with its options, active or not.
func (db *DB) GetPoll(ctx context.Context, id int64) (*model.Poll, error) {
	return getPoll(ctx, db.conn, id)
}

func getPoll(ctx context.Context, q querier, id int64) (*model.Poll, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, question, created_by, is_active, ends_at, created_at
		 FROM polls WHERE id = ?`, id)

	p, err := scanPoll(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("poll", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting poll %d: %w", id, err)
	}

	if p.Options, err = listOptions(ctx, q, id); err != nil {
		return nil, err
	}
	return p, nil
}

func scanPoll(s scanner) (*model.Poll, error) {
	var (
		p      model.Poll
		endsAt sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Question, &p.CreatedBy, &p.IsActive, &endsAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	if endsAt.Valid {
		t := endsAt.Time.UTC()
		p.EndsAt = &t
	}
	return &p, nil
}

func listOptions(ctx context.Context, q querier, pollID int64) ([]model.PollOption, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT option_id, text, votes FROM poll_options
		 WHERE poll_id = ? ORDER BY option_id ASC`, pollID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing options for poll %d: %w", pollID, err)
	}
	defer rows.Close()

	options := []model.PollOption{}
	for rows.Next() {
		var o model.PollOption
		if err := rows.Scan(&o.ID, &o.Text, &o.Votes); err != nil {
			return nil, fmt.Errorf("sqlite: scanning poll option: %w", err)
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// ListActivePolls returns active polls newest first, options included.
func (db *DB) ListActivePolls(ctx context.Context) ([]model.Poll, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, question, created_by, is_active, ends_at, created_at
		 FROM polls WHERE is_active = 1 ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing polls: %w", err)
	}

	polls := []model.Poll{}
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning poll: %w", err)
		}
		polls = append(polls, *p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("sqlite: iterating polls: %w", err)
	}

	// Options are loaded after the outer cursor is closed; the pool has a
	// single connection and it is still held while rows is open.
	for i := range polls {
		if polls[i].Options, err = listOptions(ctx, db.conn, polls[i].ID); err != nil {
			return nil, err
		}
	}
	return polls, nil
}

// DeactivatePoll soft-deletes a poll. Votes and options are kept.
func (db *DB) DeactivatePoll(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE polls SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deactivating poll %d: %w", id, err)
	}
	return expectOneRow(result, "poll", strconv.FormatInt(id, 10))
}

// CastPollVote records a vote and bumps the option tally in one transaction.
// The (poll_id, user_id) primary key rejects a second vote with Conflict.
// It returns the poll as it stands after the vote.
func (db *DB) CastPollVote(ctx context.Context, vote *model.PollVote) (*model.Poll, error) {
	if vote.VotedAt.IsZero() {
		vote.VotedAt = time.Now().UTC()
	}

	var poll *model.Poll
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var active bool
		err := tx.QueryRowContext(ctx,
			`SELECT is_active FROM polls WHERE id = ?`, vote.PollID,
		).Scan(&active)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
			return apperror.NotFound("poll", strconv.FormatInt(vote.PollID, 10))
		}
		if err != nil {
			return fmt.Errorf("sqlite: loading poll %d: %w", vote.PollID, err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE poll_options SET votes = votes + 1 WHERE poll_id = ? AND option_id = ?`,
			vote.PollID, vote.OptionID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: incrementing poll option: %w", err)
		}
		if err := expectOneRow(result, "poll option", strconv.Itoa(vote.OptionID)); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx,
			`INSERT INTO poll_votes (poll_id, user_id, option_id, voted_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (poll_id, user_id) DO NOTHING`,
			vote.PollID, vote.UserID, vote.OptionID, vote.VotedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting poll vote: %w", err)
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking poll vote insert: %w", err)
		}
		if inserted == 0 {
			return apperror.Conflict("you have already voted on this poll")
		}

		poll, err = getPoll(ctx, tx, vote.PollID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return poll, nil
}

// ListVotesByUser returns every poll vote a user has cast.
func (db *DB) ListVotesByUser(ctx context.Context, userID string) ([]model.PollVote, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT poll_id, user_id, option_id, voted_at FROM poll_votes
		 WHERE user_id = ? ORDER BY voted_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing poll votes for %s: %w", userID, err)
	}
	defer rows.Close()

	votes := []model.PollVote{}
	for rows.Next() {
		var v model.PollVote
		if err := rows.Scan(&v.PollID, &v.UserID, &v.OptionID, &v.VotedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning poll vote: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating poll votes: %w", err)
	}
	return votes, nil
}
