package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/model"
	"github.com/civicforum/constitution-platform/internal/repository"
)

// compile-time check that *DB implements repository.PostRepository
var _ repository.PostRepository = (*DB)(nil)

// postSelect joins the author so AuthorUserID comes back with every post.
const postSelect = `
	SELECT p.seq, p.post_id, p.author_id, u.user_id, p.article_number, p.article_title,
	       p.content, p.agree_count, p.disagree_count, p.created_at, p.updated_at
	FROM posts p
	JOIN users u ON u.id = p.author_id`

// CreatePost inserts a post with zero counters and assigns its display id.
//
// The display id is derived from the AUTOINCREMENT sequence inside the same
// transaction, so two concurrent creates can never compute the same id.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC()

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO posts (author_id, article_number, article_title, content,
			                    agree_count, disagree_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 0, 0, ?, ?)`,
			post.AuthorID, post.ArticleNumber, post.ArticleTitle, post.Content, now, now,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting post: %w", err)
		}

		seq, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading post sequence: %w", err)
		}

		postID := model.FormatPostID(seq)
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET post_id = ? WHERE seq = ?`, postID, seq,
		); err != nil {
			return fmt.Errorf("sqlite: assigning post id %s: %w", postID, err)
		}

		if post.AuthorUserID == "" {
			if err := tx.QueryRowContext(ctx,
				`SELECT user_id FROM users WHERE id = ?`, post.AuthorID,
			).Scan(&post.AuthorUserID); err != nil {
				return fmt.Errorf("sqlite: loading post author: %w", err)
			}
		}

		post.Seq = seq
		post.PostID = postID
		return nil
	})
	if err != nil {
		return err
	}

	post.AgreeCount = 0
	post.DisagreeCount = 0
	post.CreatedAt = now
	post.UpdatedAt = now
	return nil
}

// GetPost retrieves a post by its display id.
func (db *DB) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	row := db.conn.QueryRowContext(ctx, postSelect+` WHERE p.post_id = ?`, postID)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", postID)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", postID, err)
	}
	return p, nil
}

// ListPosts returns posts newest first, narrowed by filter.
func (db *DB) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	var (
		where []string
		args  []any
	)
	if filter.ArticleNumber != "" {
		where = append(where, "p.article_number = ?")
		args = append(args, filter.ArticleNumber)
	}
	if filter.AuthorID != "" {
		where = append(where, "p.author_id = ?")
		args = append(args, filter.AuthorID)
	}

	query := postSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.seq DESC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	// Initialize as empty slice (not nil) so JSON encodes as [] not null.
	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return posts, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*model.Post, error) {
	var p model.Post
	err := s.Scan(
		&p.Seq,
		&p.PostID,
		&p.AuthorID,
		&p.AuthorUserID,
		&p.ArticleNumber,
		&p.ArticleTitle,
		&p.Content,
		&p.AgreeCount,
		&p.DisagreeCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// lookupSeq resolves a display id to the internal sequence.
func lookupSeq(ctx context.Context, q querier, postID string) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx, `SELECT seq FROM posts WHERE post_id = ?`, postID).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("post", postID)
		}
		return 0, fmt.Errorf("sqlite: looking up post %s: %w", postID, err)
	}
	return seq, nil
}

// AddResponse records a vote and bumps the matching counter atomically.
//
// The response row and the counter update share one transaction. The
// (post_seq, user_id) primary key plus ON CONFLICT DO NOTHING makes the
// duplicate check and the insert a single statement: if nothing was inserted
// the user had already responded and the transaction is rolled back, so the
// counters are untouched.
func (db *DB) AddResponse(ctx context.Context, resp *model.Response) (model.Counters, error) {
	var counters model.Counters
	if resp.RespondedAt.IsZero() {
		resp.RespondedAt = time.Now().UTC()
	}

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := lookupSeq(ctx, tx, resp.PostID)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO responses (post_seq, user_id, stance, responded_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (post_seq, user_id) DO NOTHING`,
			seq, resp.UserID, string(resp.Stance), resp.RespondedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting response: %w", err)
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking response insert: %w", err)
		}
		if inserted == 0 {
			return apperror.AlreadyResponded(resp.PostID)
		}

		column := "agree_count"
		if resp.Stance == model.StanceDisagree {
			column = "disagree_count"
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET `+column+` = `+column+` + 1, updated_at = ? WHERE seq = ?`,
			time.Now().UTC(), seq,
		); err != nil {
			return fmt.Errorf("sqlite: incrementing %s: %w", column, err)
		}

		return tx.QueryRowContext(ctx,
			`SELECT agree_count, disagree_count FROM posts WHERE seq = ?`, seq,
		).Scan(&counters.AgreeCount, &counters.DisagreeCount)
	})
	if err != nil {
		return model.Counters{}, err
	}
	return counters, nil
}

// HasResponded reports whether userID has a response on postID.
// An unknown post is reported as false, not as an error.
func (db *DB) HasResponded(ctx context.Context, postID, userID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM responses r
			JOIN posts p ON p.seq = r.post_seq
			WHERE p.post_id = ? AND r.user_id = ?
		)`,
		postID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking response on %s: %w", postID, err)
	}
	return exists, nil
}

// ListResponses returns every response on a post in the order they were cast.
func (db *DB) ListResponses(ctx context.Context, postID string) ([]model.Response, error) {
	seq, err := lookupSeq(ctx, db.conn, postID)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.user_id, u.user_id, r.stance, r.responded_at
		 FROM responses r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.post_seq = ?
		 ORDER BY r.responded_at ASC, r.rowid ASC`,
		seq,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing responses for %s: %w", postID, err)
	}
	defer rows.Close()

	responses := []model.Response{}
	for rows.Next() {
		var (
			r      model.Response
			stance string
			millis int64
		)
		if err := rows.Scan(&r.UserID, &r.VoterUserID, &stance, &millis); err != nil {
			return nil, fmt.Errorf("sqlite: scanning response: %w", err)
		}
		r.PostID = postID
		r.Stance = model.Stance(stance)
		r.RespondedAt = time.UnixMilli(millis).UTC()
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating responses: %w", err)
	}
	return responses, nil
}

// Stats returns the counters of a post plus its comment count.
func (db *DB) Stats(ctx context.Context, postID string) (*model.PostStats, error) {
	var s model.PostStats
	err := db.conn.QueryRowContext(ctx,
		`SELECT p.post_id, p.agree_count, p.disagree_count,
		        (SELECT COUNT(*) FROM comments c WHERE c.post_seq = p.seq)
		 FROM posts p WHERE p.post_id = ?`,
		postID,
	).Scan(&s.PostID, &s.AgreeCount, &s.DisagreeCount, &s.CommentCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", postID)
		}
		return nil, fmt.Errorf("sqlite: loading stats for %s: %w", postID, err)
	}
	s.TotalResponses = s.AgreeCount + s.DisagreeCount
	return &s, nil
}

// Trending ranks posts by how many responses they received at or after since.
// Posts with no response in the window are left out. Ties go to the older post.
func (db *DB) Trending(ctx context.Context, since time.Time) ([]model.TrendingPost, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.post_id, u.user_id, p.article_number, p.article_title, p.content,
		        p.agree_count, p.disagree_count, COUNT(*) AS recent
		 FROM responses r
		 JOIN posts p ON p.seq = r.post_seq
		 JOIN users u ON u.id = p.author_id
		 WHERE r.responded_at >= ?
		 GROUP BY p.seq, p.post_id, u.user_id, p.article_number, p.article_title,
		          p.content, p.agree_count, p.disagree_count
		 ORDER BY recent DESC, p.seq ASC`,
		since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: computing trending posts: %w", err)
	}
	defer rows.Close()

	trending := []model.TrendingPost{}
	for rows.Next() {
		var t model.TrendingPost
		if err := rows.Scan(
			&t.PostID,
			&t.AuthorUserID,
			&t.ArticleNumber,
			&t.ArticleTitle,
			&t.Content,
			&t.AgreeCount,
			&t.DisagreeCount,
			&t.RecentResponses,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning trending post: %w", err)
		}
		trending = append(trending, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating trending posts: %w", err)
	}
	return trending, nil
}

// AddComment attaches a comment to a post.
func (db *DB) AddComment(ctx context.Context, comment *model.Comment) error {
	seq, err := lookupSeq(ctx, db.conn, comment.PostID)
	if err != nil {
		return err
	}

	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now().UTC()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, post_seq, author_id, text, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		comment.ID, seq, comment.AuthorID, comment.Text, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting comment on %s: %w", comment.PostID, err)
	}
	return nil
}

// ListComments returns a post's comments oldest first.
func (db *DB) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	seq, err := lookupSeq(ctx, db.conn, postID)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.author_id, u.user_id, c.text, c.created_at
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.post_seq = ?
		 ORDER BY c.created_at ASC, c.rowid ASC`,
		seq,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for %s: %w", postID, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		c := model.Comment{PostID: postID}
		if err := rows.Scan(&c.ID, &c.AuthorID, &c.AuthorUserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}
