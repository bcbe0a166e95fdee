package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/auth"
	"github.com/civicforum/constitution-platform/internal/model"
	"github.com/civicforum/constitution-platform/internal/service"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Users        int
	PostsPerUser int
	Password     string
	Cost         int
}

// SeedResult summarises what seed inserted.
type SeedResult struct {
	UsersCreated int `json:"users_created"`
	UsersSkipped int `json:"users_skipped"`
	Posts        int `json:"posts"`
	Responses    int `json:"responses"`
}

type seedArticle struct {
	number, title string
}

var seedArticles = []seedArticle{
	{"14", "Equality before law"},
	{"19", "Protection of certain rights regarding freedom of speech, etc."},
	{"21", "Protection of life and personal liberty"},
	{"25", "Freedom of conscience and free profession, practice and propagation of religion"},
	{"32", "Remedies for enforcement of rights conferred by this Part"},
	{"51A", "Fundamental duties"},
}

var expertContents = []string{
	"From a legal perspective, this provision requires careful interpretation considering recent Supreme Court judgments.",
	"The legislative intent behind this article reflects a balance between individual rights and state interests.",
	"Constitutional scholars have debated the original intent versus modern interpretation of this article for decades.",
}

var citizenContents = []string{
	"This article directly impacts our daily lives and should be more accessible to common citizens.",
	"I strongly support this article as it safeguards freedoms we often take for granted.",
	"There should be more public discussion about this provision so people understand their rights better.",
}

var seedRoles = []model.Role{model.RoleCitizen, model.RoleExpert, model.RoleLawmaker}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo users, posts and votes",
		Long: `Insert demo data for local development.

Users are named User1..UserN with emails u1@x.io..uN@x.io and share one
password. Users whose email already exists are skipped, so seed can be
run again safely. Every new user writes posts on a rotating set of
articles and every user agrees or disagrees with the posts of the
previous user.

Examples:
  civicctl seed
  civicctl seed --users 20 --posts 2 --db ./data/civic.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Users, "users", 10, "number of demo users")
	cmd.Flags().IntVar(&opts.PostsPerUser, "posts", 3, "posts per new user")
	cmd.Flags().StringVar(&opts.Password, "password", "12341234", "password for every demo user")
	cmd.Flags().IntVar(&opts.Cost, "bcrypt-cost", bcrypt.DefaultCost, "bcrypt cost for demo passwords")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *SeedOptions) error {
	if opts.Users < 1 || opts.PostsPerUser < 0 {
		return fmt.Errorf("--users must be positive and --posts non-negative")
	}

	db, err := opts.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger(cmd.ErrOrStderr())

	identity := service.NewIdentityService(db, auth.NewPasswordServiceWithCost(opts.Cost), nil, logger)
	engagement := service.NewEngagementService(db, db, logger)

	var (
		result SeedResult
		users  []*model.User
		posts  = map[string][]string{} // user internal id → post ids
	)

	for i := 1; i <= opts.Users; i++ {
		role := seedRoles[i%len(seedRoles)]
		res, err := identity.Register(ctx, service.RegisterInput{
			Name:     fmt.Sprintf("User%d", i),
			Email:    fmt.Sprintf("u%d@x.io", i),
			Password: opts.Password,
			Role:     role,
		})
		if errors.Is(err, apperror.ErrConflict) {
			result.UsersSkipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("registering User%d: %w", i, err)
		}
		result.UsersCreated++
		users = append(users, res.User)

		contents := citizenContents
		if role == model.RoleExpert {
			contents = expertContents
		}
		for j := 0; j < opts.PostsPerUser; j++ {
			article := seedArticles[(i+j)%len(seedArticles)]
			post, err := engagement.CreatePost(ctx, res.User.ID, article.number, article.title, contents[j%len(contents)])
			if err != nil {
				return fmt.Errorf("creating post for %s: %w", res.User.UserID, err)
			}
			posts[res.User.ID] = append(posts[res.User.ID], post.PostID)
			result.Posts++
		}
	}

	for i, voter := range users {
		if len(users) < 2 {
			break
		}
		author := users[(i+len(users)-1)%len(users)]
		stance := model.StanceAgree
		if i%3 == 0 {
			stance = model.StanceDisagree
		}
		for _, postID := range posts[author.ID] {
			if _, err := engagement.CastVote(ctx, postID, voter.ID, stance); err != nil {
				return fmt.Errorf("voting on %s: %w", postID, err)
			}
			result.Responses++
		}
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintf(out, "users created: %d (skipped %d)\nposts: %d\nresponses: %d\n",
		result.UsersCreated, result.UsersSkipped, result.Posts, result.Responses)
	return nil
}
