package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codequill/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, avatar_url, bio, email_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.AvatarURL, &u.Bio, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`, email,
	).Scan(&exists)
	return exists, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, user.Name, user.Email, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		// гонка двух одновременных регистраций на один email:
		// проверка занятости прошла до вставки конкурента
		return models.ErrDuplicateAccount
	}
	return err
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateProfileFields — частичное обновление собственного профиля.
func (r *UserRepository) UpdateProfileFields(ctx context.Context, id int, input *models.UpdateProfileRequest) error {
	set := []string{}
	args := []interface{}{}
	i := 1

	if input.Name != nil {
		set = append(set, fmt.Sprintf("name=$%d", i))
		args = append(args, *input.Name)
		i++
	}
	if input.AvatarURL != nil {
		set = append(set, fmt.Sprintf("avatar_url=$%d", i))
		args = append(args, *input.AvatarURL)
		i++
	}
	if input.Bio != nil {
		set = append(set, fmt.Sprintf("bio=$%d", i))
		args = append(args, *input.Bio)
		i++
	}
	if len(set) == 0 {
		return nil
	}

	set = append(set, "updated_at=NOW()")
	sql := fmt.Sprintf("UPDATE users SET %s WHERE id=$%d", strings.Join(set, ", "), i)
	args = append(args, id)

	_, err := r.db.Exec(ctx, sql, args...)
	return err
}

// UpdateUserFields — админское обновление (имя, роль).
func (r *UserRepository) UpdateUserFields(ctx context.Context, id int, input *models.UpdateUserRequest) error {
	set := []string{}
	args := []interface{}{}
	i := 1

	if input.Name != nil {
		set = append(set, fmt.Sprintf("name=$%d", i))
		args = append(args, *input.Name)
		i++
	}
	if input.Role != nil {
		set = append(set, fmt.Sprintf("role=$%d", i))
		args = append(args, *input.Role)
		i++
	}
	if len(set) == 0 {
		return nil
	}

	set = append(set, "updated_at=NOW()")
	sql := fmt.Sprintf("UPDATE users SET %s WHERE id=$%d", strings.Join(set, ", "), i)
	args = append(args, id)

	_, err := r.db.Exec(ctx, sql, args...)
	return err
}

func (r *UserRepository) SetEmailVerified(ctx context.Context, userID int, verified bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET email_verified=$2, updated_at=NOW() WHERE id=$1`, userID, verified)
	return err
}

func (r *UserRepository) GetAllUsersPaginated(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, u)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// --- refresh-токены ---

func (r *UserRepository) SaveRefreshToken(ctx context.Context, userID int, token string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, token)
	return err
}

func (r *UserRepository) IsRefreshTokenValid(ctx context.Context, userID int, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE user_id=$1 AND token=$2)`,
		userID, token).Scan(&exists)
	return exists, err
}

func (r *UserRepository) DeleteRefreshToken(ctx context.Context, userID int, token string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE user_id=$1 AND token=$2`, userID, token)
	return err
}
