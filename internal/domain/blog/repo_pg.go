package blog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type articleRepoPG struct {
	pool *pgxpool.Pool
}

func NewArticleRepo(pool *pgxpool.Pool) ArticleRepository {
	return &articleRepoPG{pool: pool}
}

func (r *articleRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const articleCols = `b.id, b.title, b.content, b.image, b.author_id, u.name, u.role, b.created_at, b.updated_at`

const articleFrom = ` FROM blogs b JOIN users u ON u.id = b.author_id`

func scanArticle(row pgx.Row) (*Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Image, &a.AuthorID, &a.Author.Name, &a.Author.Role, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *articleRepoPG) Create(ctx context.Context, a *Article) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO blogs (id, title, content, image, author_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)
		SELECT u.name, u.role, ins.created_at, ins.updated_at FROM ins JOIN users u ON u.id = ins.author_id`,
		a.ID, a.Title, a.Content, a.Image, a.AuthorID,
	).Scan(&a.Author.Name, &a.Author.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("article create: %w", err)
	}
	return nil
}

func (r *articleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Article, error) {
	return scanArticle(r.conn(ctx).QueryRow(ctx, `SELECT `+articleCols+articleFrom+` WHERE b.id = $1`, id))
}

func (r *articleRepoPG) List(ctx context.Context, limit, offset int) ([]*Article, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM blogs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("article count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+articleCols+articleFrom+`
		ORDER BY b.created_at DESC, b.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("article list: %w", err)
	}
	defer rows.Close()

	items := []*Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *articleRepoPG) Update(ctx context.Context, a *Article) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE blogs SET title = $2, content = $3, image = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Title, a.Content, a.Image,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrArticleNotFound
	}
	if err != nil {
		return fmt.Errorf("article update: %w", err)
	}
	return nil
}

func (r *articleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("article delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrArticleNotFound
	}
	return nil
}
