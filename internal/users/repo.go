package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/bloglist/internal/telemetry/tracing"
	"github.com/2beens/bloglist/pkg"
)

var _ usersRepo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// All returns every user with the blogs they own.
func (r *Repo) All(ctx context.Context) (_ []User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.all")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT id, username, name, password_hash FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, err
	}

	blogsByOwner, err := r.blogRefs(ctx, `WHERE user_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if refs, ok := blogsByOwner[users[i].ID]; ok {
			users[i].Blogs = refs
		}
	}

	return users, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.get")
	span.SetAttributes(attribute.Int("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT id, username, name, password_hash FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	blogsByOwner, err := r.blogRefs(ctx, `WHERE user_id = $1`, id)
	if err != nil {
		return nil, err
	}
	if refs, ok := blogsByOwner[id]; ok {
		user.Blogs = refs
	}

	return &user, nil
}

// GetByUsername loads the user with its password hash, without owned blogs.
func (r *Repo) GetByUsername(ctx context.Context, username string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.getByUsername")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT id, username, name, password_hash FROM users WHERE username = $1`, username)
	if err != nil {
		return nil, err
	}
	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}

func (r *Repo) Add(ctx context.Context, user User) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO users (username, name, password_hash) VALUES ($1, $2, $3) RETURNING id`,
		user.Username, user.Name, user.PasswordHash,
	).Scan(&user.ID); err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	user.Blogs = []BlogRef{}
	return &user, nil
}

func (r *Repo) blogRefs(ctx context.Context, where string, args ...any) (map[int][]BlogRef, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title, url, user_id FROM blogs `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query owned blogs: %w", err)
	}
	defer rows.Close()

	refs := make(map[int][]BlogRef)
	for rows.Next() {
		var ref BlogRef
		var ownerID int
		if err := rows.Scan(&ref.ID, &ref.Title, &ref.URL, &ownerID); err != nil {
			return nil, err
		}
		refs[ownerID] = append(refs[ownerID], ref)
	}

	return refs, rows.Err()
}

func scanUser(row pgx.CollectableRow) (User, error) {
	u := User{Blogs: []BlogRef{}}
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash)
	return u, err
}
