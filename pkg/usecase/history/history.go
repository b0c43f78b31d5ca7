package history

import (
	"github.com/m-mizutani/lectern/pkg/adapter"
	"github.com/m-mizutani/lectern/pkg/repository"
)

// UseCase reads saved conversations and notes
type UseCase struct {
	repo    repository.Repository
	storage adapter.Storage
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithStorage enables loading entries archived in object storage
func WithStorage(storage adapter.Storage) Option {
	return func(uc *UseCase) {
		uc.storage = storage
	}
}

func New(repo repository.Repository, opts ...Option) *UseCase {
	uc := &UseCase{repo: repo}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}
