// Package constitution serves the constitution articles that posts are
// written about. The text ships inside the binary as articles.yaml.
package constitution

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed articles.yaml
var articlesYAML []byte

// Article is one entry of the catalog. Number matches Post.ArticleNumber.
type Article struct {
	Number  string `yaml:"number" json:"number"`
	Title   string `yaml:"title" json:"title"`
	Content string `yaml:"content" json:"content"`
}

type catalogFile struct {
	Articles []Article `yaml:"articles"`
}

// Catalog is an immutable, ordered set of articles. Safe for concurrent use.
type Catalog struct {
	articles []Article
	byNumber map[string]Article
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(articlesYAML)
}

// Parse builds a catalog from YAML. Numbers must be non-empty and unique
// (compared case-insensitively).
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("constitution: parsing catalog: %w", err)
	}

	c := &Catalog{byNumber: make(map[string]Article, len(f.Articles))}
	for i, a := range f.Articles {
		a.Number = strings.TrimSpace(a.Number)
		if a.Number == "" {
			return nil, fmt.Errorf("constitution: article %d has no number", i)
		}
		key := strings.ToUpper(a.Number)
		if _, dup := c.byNumber[key]; dup {
			return nil, fmt.Errorf("constitution: duplicate article %q", a.Number)
		}
		c.byNumber[key] = a
		c.articles = append(c.articles, a)
	}
	return c, nil
}

// List returns the articles in catalog order.
func (c *Catalog) List() []Article {
	out := make([]Article, len(c.articles))
	copy(out, c.articles)
	return out
}

// Lookup finds an article by number, e.g. "21", "21a" or "preamble".
func (c *Catalog) Lookup(number string) (Article, bool) {
	a, ok := c.byNumber[strings.ToUpper(strings.TrimSpace(number))]
	return a, ok
}

var articleRef = regexp.MustCompile(`(?i)\barticle\s*(\d+[a-z]?)\b`)

// Mentioned returns the first catalog article referenced as "article N" in
// text, if any.
func (c *Catalog) Mentioned(text string) (Article, bool) {
	for _, m := range articleRef.FindAllStringSubmatch(text, -1) {
		if a, ok := c.Lookup(m[1]); ok {
			return a, true
		}
	}
	return Article{}, false
}
