package articles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("articles: not found")
	ErrNoTopics = errors.New("articles: no parsable topics")
)

// Generator produces article body text for a topic. Implemented by the
// language-model client.
type Generator interface {
	GenerateArticle(ctx context.Context, title, details string) (string, error)
}

// Repository abstracts article persistence.
type Repository interface {
	Insert(ctx context.Context, a Article) error
	Get(ctx context.Context, id string) (Article, error)
	ListRecent(ctx context.Context, limit int) ([]Article, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	repo      Repository
	generator Generator
	clock     func() time.Time
}

func NewService(repo Repository, generator Generator) *Service {
	return &Service{repo: repo, generator: generator, clock: time.Now}
}

// GenerateResult reports per-topic outcomes; one failed generation does not
// abort the rest.
type GenerateResult struct {
	Generated []Article `json:"generated"`
	Failed    []string  `json:"failed,omitempty"`
}

// GenerateFromInput parses the topics text and generates one article per
// topic.
func (s *Service) GenerateFromInput(ctx context.Context, input string) (GenerateResult, error) {
	if s.generator == nil {
		return GenerateResult{}, errors.New("articles: generator not configured")
	}

	topics := ParseTopics(input)
	if len(topics) == 0 {
		return GenerateResult{}, ErrNoTopics
	}

	var out GenerateResult
	for _, topic := range topics {
		content, err := s.generator.GenerateArticle(ctx, topic.Title, topic.Details)
		if err != nil {
			out.Failed = append(out.Failed, topic.Title)
			continue
		}

		a := Article{
			ID:        uuid.NewString(),
			Title:     topic.Title,
			Topic:     topic.Details,
			Content:   content,
			CreatedAt: s.clock().UTC(),
		}
		if err := s.repo.Insert(ctx, a); err != nil {
			return out, err
		}
		out.Generated = append(out.Generated, a)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Article, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
