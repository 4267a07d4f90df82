// Package repository persists inference results.
package repository

import (
	"context"

	"github.com/okian/nsted/internal/domain/model"
)

// Store provides read/write access to stored inference results.
type Store interface {
	// Save assigns an ID and creation time when they are empty and stores r.
	Save(ctx context.Context, r *model.Result) error

	// Get returns a result by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Result, error)

	// Latest returns the most recently saved result, or ErrNotFound when empty.
	Latest(ctx context.Context) (*model.Result, error)

	// List returns up to limit summaries, newest first.
	List(ctx context.Context, limit int) ([]model.Summary, error)

	// Count returns the number of stored results.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying database.
	Close() error
}
