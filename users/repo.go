package users

import "context"

// Repo stores user accounts. Lookups that find nothing return an error of
// kind NotFound wrapping apperrors.ErrUserNotFound; Create on a taken email
// returns a Conflict wrapping apperrors.ErrUserExists.
type Repo interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
}
