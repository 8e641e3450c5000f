package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"newscraper/internal/domain"
)

// ArticleStore persists scraped articles to PostgreSQL. It is a
// fire-and-forget sink: the scrape job's result never depends on it.
type ArticleStore struct {
	db *pgxpool.Pool
}

func NewArticleStore(connStr string) (*ArticleStore, error) {
	db, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &ArticleStore{db: db}, nil
}

func (s *ArticleStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *ArticleStore) Close() {
	s.db.Close()
}

// SaveArticles upserts articles keyed by URL in a single batch.
func (s *ArticleStore) SaveArticles(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range articles {
		batch.Queue(
			`INSERT INTO articles (url, headline, description, source, published_date, content, category, relevance_score)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (url) DO UPDATE SET
			   headline = EXCLUDED.headline,
			   description = EXCLUDED.description,
			   published_date = EXCLUDED.published_date,
			   content = EXCLUDED.content,
			   category = EXCLUDED.category,
			   relevance_score = EXCLUDED.relevance_score,
			   updated_at = NOW()`,
			a.URL, a.Headline, a.Description, a.Source, a.PublishedDate, a.Content, a.Category, a.Relevance,
		)
	}
	return s.db.SendBatch(ctx, batch).Close()
}
