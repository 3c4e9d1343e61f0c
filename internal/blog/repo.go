package blog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/bloglist/internal/telemetry/tracing"
	"github.com/2beens/bloglist/pkg"
)

// every read goes through this projection, so the owner is always expanded
const selectBlogsWithOwner = `
	SELECT b.id, b.title, b.author, b.url, b.likes, u.id, u.username, u.name
	FROM %s b
	LEFT JOIN users u ON u.id = b.user_id
`

var _ blogRepo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) All(ctx context.Context) (_ []Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.all")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, fmt.Sprintf(selectBlogsWithOwner, "blogs")+`ORDER BY b.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blogs := make([]Blog, 0)
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, *b)
	}

	return blogs, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.get")
	span.SetAttributes(attribute.Int("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	row := r.db.QueryRow(ctx, fmt.Sprintf(selectBlogsWithOwner, "blogs")+`WHERE b.id = $1`, id)
	b, err := scanBlog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBlogNotFound
	}
	return b, err
}

// Add stores the blog owned by ownerID and returns it with its id and owner set.
func (r *Repo) Add(ctx context.Context, blog Blog, ownerID int) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.add")
	span.SetAttributes(attribute.Int("owner", ownerID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	row := r.db.QueryRow(
		ctx,
		`WITH inserted AS (
			INSERT INTO blogs (title, author, url, likes, user_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)`+fmt.Sprintf(selectBlogsWithOwner, "inserted"),
		blog.Title, blog.Author, blog.URL, blog.Likes, ownerID,
	)
	added, err := scanBlog(row)
	if err != nil {
		if pkg.IsForeignKeyViolationError(err) {
			return nil, ErrUnknownOwner
		}
		return nil, fmt.Errorf("insert blog: %w", err)
	}

	log.Tracef("blog %d [%s] added by user %d", added.ID, added.Title, ownerID)

	return added, nil
}

// UpdateLikes sets the likes of a blog. The owner and the other fields are never changed.
func (r *Repo) UpdateLikes(ctx context.Context, id, likes int) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.updateLikes")
	span.SetAttributes(attribute.Int("id", id), attribute.Int("likes", likes))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	row := r.db.QueryRow(
		ctx,
		`WITH updated AS (
			UPDATE blogs SET likes = $1 WHERE id = $2
			RETURNING *
		)`+fmt.Sprintf(selectBlogsWithOwner, "updated"),
		likes, id,
	)
	updated, err := scanBlog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBlogNotFound
	}
	return updated, err
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.delete")
	span.SetAttributes(attribute.Int("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlogNotFound
	}
	return nil
}

func scanBlog(row pgx.Row) (*Blog, error) {
	var b Blog
	var ownerID *int
	var ownerUsername, ownerName *string
	if err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.URL, &b.Likes,
		&ownerID, &ownerUsername, &ownerName,
	); err != nil {
		return nil, err
	}

	if ownerID != nil {
		b.User = &Owner{ID: *ownerID}
		if ownerUsername != nil {
			b.User.Username = *ownerUsername
		}
		if ownerName != nil {
			b.User.Name = *ownerName
		}
	}

	return &b, nil
}
