package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/assistant"
	"github.com/civicforum/constitution-platform/internal/model"
	"github.com/civicforum/constitution-platform/internal/repository"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces. They
// hold the same invariants the SQL schema does (one response per post and
// user, one vote per poll and user) so service tests exercise the real rules
// without a database.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---- users ----

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // by internal ID
	next  int
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperror.Conflict("email is already registered")
		}
		if u.UserID == user.UserID {
			return apperror.Conflict("user id is already taken")
		}
	}
	m.next++
	user.ID = "u" + strconv.Itoa(m.next)
	if user.Role == "" {
		user.Role = model.RoleCitizen
	}
	user.CreatedAt = time.Now()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) find(match func(*model.User) bool, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id }, id)
}

func (m *mockUserRepo) GetByUserID(_ context.Context, userID string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.UserID == userID }, userID)
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email }, email)
}

func (m *mockUserRepo) GetByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID }, googleID)
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Password = password
	return nil
}

func (m *mockUserRepo) LinkGoogle(_ context.Context, id, googleID, picture string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.GoogleID = &googleID
	u.Picture = picture
	return nil
}

// ---- posts ----

type mockPostRepo struct {
	mu        sync.Mutex
	seq       int64
	posts     map[string]*model.Post
	responses map[string][]model.Response // by postID, in insertion order
	comments  map[string][]model.Comment
	lastSince time.Time
}

var _ repository.PostRepository = (*mockPostRepo)(nil)

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{
		posts:     make(map[string]*model.Post),
		responses: make(map[string][]model.Response),
		comments:  make(map[string][]model.Comment),
	}
}

func (m *mockPostRepo) CreatePost(_ context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	post.Seq = m.seq
	post.PostID = model.FormatPostID(m.seq)
	post.CreatedAt = time.Now()
	stored := *post
	m.posts[post.PostID] = &stored
	return nil
}

func (m *mockPostRepo) GetPost(_ context.Context, postID string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}
	c := *p
	return &c, nil
}

func (m *mockPostRepo) ListPosts(_ context.Context, f repository.PostFilter) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Post{}
	for _, p := range m.posts {
		if f.ArticleNumber != "" && p.ArticleNumber != f.ArticleNumber {
			continue
		}
		if f.AuthorID != "" && p.AuthorID != f.AuthorID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

func (m *mockPostRepo) AddResponse(_ context.Context, r *model.Response) (model.Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[r.PostID]
	if !ok {
		return model.Counters{}, apperror.NotFound("post", r.PostID)
	}
	for _, existing := range m.responses[r.PostID] {
		if existing.UserID == r.UserID {
			return model.Counters{}, apperror.AlreadyResponded(r.PostID)
		}
	}
	m.responses[r.PostID] = append(m.responses[r.PostID], *r)
	if r.Stance == model.StanceAgree {
		p.AgreeCount++
	} else {
		p.DisagreeCount++
	}
	return model.Counters{AgreeCount: p.AgreeCount, DisagreeCount: p.DisagreeCount}, nil
}

func (m *mockPostRepo) HasResponded(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.responses[postID] {
		if r.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPostRepo) ListResponses(_ context.Context, postID string) ([]model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return nil, apperror.NotFound("post", postID)
	}
	return append([]model.Response{}, m.responses[postID]...), nil
}

func (m *mockPostRepo) Stats(_ context.Context, postID string) (*model.PostStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}
	return &model.PostStats{
		PostID:         postID,
		AgreeCount:     p.AgreeCount,
		DisagreeCount:  p.DisagreeCount,
		TotalResponses: p.AgreeCount + p.DisagreeCount,
		CommentCount:   len(m.comments[postID]),
	}, nil
}

func (m *mockPostRepo) Trending(_ context.Context, since time.Time) ([]model.TrendingPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSince = since

	type ranked struct {
		seq int64
		tp  model.TrendingPost
	}
	var rows []ranked
	for id, p := range m.posts {
		recent := 0
		for _, r := range m.responses[id] {
			if !r.RespondedAt.Before(since) {
				recent++
			}
		}
		if recent == 0 {
			continue
		}
		rows = append(rows, ranked{p.Seq, model.TrendingPost{
			PostID:          p.PostID,
			AuthorUserID:    p.AuthorUserID,
			ArticleNumber:   p.ArticleNumber,
			ArticleTitle:    p.ArticleTitle,
			Content:         p.Content,
			AgreeCount:      p.AgreeCount,
			DisagreeCount:   p.DisagreeCount,
			RecentResponses: recent,
		}})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].tp.RecentResponses != rows[j].tp.RecentResponses {
			return rows[i].tp.RecentResponses > rows[j].tp.RecentResponses
		}
		return rows[i].seq < rows[j].seq
	})

	out := []model.TrendingPost{}
	for _, r := range rows {
		out = append(out, r.tp)
	}
	return out, nil
}

func (m *mockPostRepo) AddComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[c.PostID]; !ok {
		return apperror.NotFound("post", c.PostID)
	}
	c.ID = "c" + strconv.Itoa(len(m.comments[c.PostID])+1)
	c.CreatedAt = time.Now()
	m.comments[c.PostID] = append(m.comments[c.PostID], *c)
	return nil
}

func (m *mockPostRepo) ListComments(_ context.Context, postID string) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return nil, apperror.NotFound("post", postID)
	}
	return append([]model.Comment{}, m.comments[postID]...), nil
}

// ---- polls ----

type mockPollRepo struct {
	mu    sync.Mutex
	next  int64
	polls map[int64]*model.Poll
	votes []model.PollVote
}

var _ repository.PollRepository = (*mockPollRepo)(nil)

func newMockPollRepo() *mockPollRepo {
	return &mockPollRepo{polls: make(map[int64]*model.Poll)}
}

func clonePoll(p *model.Poll) *model.Poll {
	c := *p
	c.Options = append([]model.PollOption{}, p.Options...)
	return &c
}

func (m *mockPollRepo) CreatePoll(_ context.Context, poll *model.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if poll.ID == 0 {
		m.next++
		for m.polls[m.next] != nil {
			m.next++
		}
		poll.ID = m.next
	} else if m.polls[poll.ID] != nil {
		return apperror.Conflict("poll already exists")
	}
	for i := range poll.Options {
		poll.Options[i].ID = i + 1
		poll.Options[i].Votes = 0
	}
	poll.IsActive = true
	poll.CreatedAt = time.Now()
	m.polls[poll.ID] = clonePoll(poll)
	return nil
}

func (m *mockPollRepo) GetPoll(_ context.Context, id int64) (*model.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[id]
	if !ok {
		return nil, apperror.NotFound("poll", strconv.FormatInt(id, 10))
	}
	return clonePoll(p), nil
}

func (m *mockPollRepo) ListActivePolls(_ context.Context) ([]model.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Poll{}
	for _, p := range m.polls {
		if p.IsActive {
			out = append(out, *clonePoll(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockPollRepo) DeactivatePoll(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[id]
	if !ok {
		return apperror.NotFound("poll", strconv.FormatInt(id, 10))
	}
	p.IsActive = false
	return nil
}

func (m *mockPollRepo) CastPollVote(_ context.Context, v *model.PollVote) (*model.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[v.PollID]
	if !ok || !p.IsActive {
		return nil, apperror.NotFound("poll", strconv.FormatInt(v.PollID, 10))
	}
	opt := p.Option(v.OptionID)
	if opt == nil {
		return nil, apperror.NotFound("poll option", strconv.Itoa(v.OptionID))
	}
	for _, existing := range m.votes {
		if existing.PollID == v.PollID && existing.UserID == v.UserID {
			return nil, apperror.Conflict("you have already voted on this poll")
		}
	}
	m.votes = append(m.votes, *v)
	opt.Votes++
	return clonePoll(p), nil
}

func (m *mockPollRepo) ListVotesByUser(_ context.Context, userID string) ([]model.PollVote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.PollVote{}
	for _, v := range m.votes {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

// ---- assistant ----

type fakeAssistant struct {
	mu       sync.Mutex
	requests []assistant.Request
	err      error
}

func (f *fakeAssistant) Ask(_ context.Context, req assistant.Request) (*assistant.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &assistant.Reply{Answer: "answer to: " + req.Message, Model: "fake"}, nil
}
