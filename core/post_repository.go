package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Post struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PostRepository is CRUD over posts. Get, Update and Delete return ErrNotFound for unknown ids.
type PostRepository interface {
	List(ctx context.Context) ([]Post, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]Post, error)
	Get(ctx context.Context, id int64) (*Post, error)
	Create(ctx context.Context, title, content string, authorID int64) (*Post, error)
	Update(ctx context.Context, id int64, title, content string) (*Post, error)
	Delete(ctx context.Context, id int64) error
}

type PgPostRepository struct {
	db *pgxpool.Pool
}

func NewPgPostRepository(db *pgxpool.Pool) *PgPostRepository {
	return &PgPostRepository{db: db}
}

const postSelect = `
SELECT p.id, p.title, p.content, p.author_id, u.username, p.created_at, p.updated_at
FROM posts p
JOIN users u ON u.id = p.author_id
`

func (r *PgPostRepository) List(ctx context.Context) ([]Post, error) {
	return r.query(ctx, postSelect+`ORDER BY p.created_at DESC, p.id DESC`)
}

func (r *PgPostRepository) ListByAuthor(ctx context.Context, authorID int64) ([]Post, error) {
	return r.query(ctx, postSelect+`WHERE p.author_id=$1 ORDER BY p.created_at DESC, p.id DESC`, authorID)
}

func (r *PgPostRepository) query(ctx context.Context, q string, args ...any) ([]Post, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Post, 0)
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.AuthorName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *PgPostRepository) Get(ctx context.Context, id int64) (*Post, error) {
	var p Post
	err := r.db.QueryRow(ctx, postSelect+`WHERE p.id=$1`, id).
		Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.AuthorName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgPostRepository) Create(ctx context.Context, title, content string, authorID int64) (*Post, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	const q = `INSERT INTO posts (title, content, author_id) VALUES ($1,$2,$3) RETURNING id, created_at, updated_at`
	p := Post{Title: title, Content: content, AuthorID: authorID}
	if err := r.db.QueryRow(ctx, q, title, content, authorID).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update rewrites title and content and refreshes updated_at.
func (r *PgPostRepository) Update(ctx context.Context, id int64, title, content string) (*Post, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	const q = `UPDATE posts SET title=$1, content=$2, updated_at=now() WHERE id=$3 RETURNING author_id, created_at, updated_at`
	p := Post{ID: id, Title: title, Content: content}
	if err := r.db.QueryRow(ctx, q, title, content, id).Scan(&p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgPostRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
