package repository

import (
	"context"

	"storefront/internal/model"
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByName(ctx context.Context, name string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	Update(ctx context.Context, u model.User) (model.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]model.User, error)
}

type ProductStore interface {
	Create(ctx context.Context, p model.Product) (model.Product, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	List(ctx context.Context) ([]model.Product, error)
	Update(ctx context.Context, p model.Product, replaceSizes bool) (model.Product, error)
	Delete(ctx context.Context, id int64) (model.Product, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

var (
	_ UserStore    = (*UserRepository)(nil)
	_ ProductStore = (*ProductRepository)(nil)
	_ AuditStore   = (*AuditRepository)(nil)
)
