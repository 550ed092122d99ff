// Package memory provides an in-process credential store for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/repository"
	"authcore/internal/errors"
)

// accountStore keeps accounts in a map keyed by identifier. The existence check
// and the insert happen under one lock, which makes InsertIfAbsent atomic.
type accountStore struct {
	mu       sync.RWMutex
	accounts map[string]entity.Account
	now      func() time.Time
}

// NewAccountStore creates an empty in-memory repository.CredentialStore.
func NewAccountStore() repository.CredentialStore {
	return newAccountStore()
}

func newAccountStore() *accountStore {
	return &accountStore{
		accounts: make(map[string]entity.Account),
		now:      time.Now,
	}
}

func (s *accountStore) InsertIfAbsent(ctx context.Context, identifier, passwordHash string) (*entity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, domainerrors.NewStoreError(errors.WithStack(err), "insert account")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[identifier]; exists {
		return nil, repository.ErrAccountExists
	}

	account := entity.Account{
		ID:           uuid.New(),
		Identifier:   identifier,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	s.accounts[identifier] = account

	return &account, nil
}

func (s *accountStore) FindByIdentifier(ctx context.Context, identifier string) (*entity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, domainerrors.NewStoreError(errors.WithStack(err), "find account")
	}

	s.mu.RLock()
	account, ok := s.accounts[identifier]
	s.mu.RUnlock()

	if !ok {
		return nil, repository.ErrAccountNotFound
	}

	// Callers receive a copy; the stored record cannot be mutated through it.
	return &account, nil
}
