package model

import "time"

// Poll is a question with numbered options that users vote on once.
type Poll struct {
	ID        int64        `json:"pollId"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	CreatedBy string       `json:"createdBy"` // public UserID, or "system"
	IsActive  bool         `json:"isActive"`
	EndsAt    *time.Time   `json:"endTime"`
	CreatedAt time.Time    `json:"createdAt"`
}

// PollOption is one choice within a poll. IDs run 1..n in creation order.
type PollOption struct {
	ID    int    `json:"optionId"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// PollVote records that a user picked an option. One per (poll, user).
type PollVote struct {
	PollID   int64     `json:"pollId"`
	UserID   string    `json:"-"`
	OptionID int       `json:"optionId"`
	VotedAt  time.Time `json:"votedAt"`
}

// Ended reports whether the poll's end time has passed at now.
func (p *Poll) Ended(now time.Time) bool {
	return p.EndsAt != nil && !now.Before(*p.EndsAt)
}

// Option returns the option with the given id, or nil.
func (p *Poll) Option(id int) *PollOption {
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i]
		}
	}
	return nil
}
