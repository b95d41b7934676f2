// Package store defines the persistence interfaces for CodeHelper.
package store

import (
	"context"
	"errors"

	"github.com/jxucoder/codehelper/pkg/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailExists is returned when inserting a user whose email is taken.
	ErrEmailExists = errors.New("email already exists")
)

// UserStore persists user accounts. Emails are unique.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Insert(ctx context.Context, u *model.User) error
	Count(ctx context.Context) (int, error)
}

// ItemStore persists items.
type ItemStore interface {
	ListItems(ctx context.Context) ([]*model.Item, error)
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	CreateItem(ctx context.Context, item *model.Item) error
	UpdateItem(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error)
	DeleteItem(ctx context.Context, id int64) (*model.Item, error)
}

// Store combines every persistence concern behind one handle.
type Store interface {
	UserStore
	ItemStore
	Close() error
}
