package pgrepo

import (
	"context"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/repository/repoargs"
	"github.com/fsdevblog/groph-balance/pkg/uow"
)

const userColumns = "id, login, password, created_at, updated_at"

type UserRepository struct {
	db uow.DBTX
}

func NewUserRepository(db uow.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create создает пользователя. Дубликат логина вернется как domain.ErrDuplicateKey.
func (r *UserRepository) Create(ctx context.Context, args repoargs.CreateUser) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		"INSERT INTO users (login, password) VALUES ($1, $2) RETURNING "+userColumns,
		args.Login, args.Password)
	user, err := scanUser(row)
	if err != nil {
		return nil, convertErr(err, "creating user %s", args.Login)
	}
	return user, nil
}

func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE login = $1", login)
	user, err := scanUser(row)
	if err != nil {
		return nil, convertErr(err, "finding user by login %s", login)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	user, err := scanUser(row)
	if err != nil {
		return nil, convertErr(err, "finding user by id %d", id)
	}
	return user, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Login, &u.Password, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &u, nil
}
