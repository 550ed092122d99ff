// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/repository"
	"authcore/internal/errors"
	"authcore/internal/infra/persistence/model"
)

// accountStore implements repository.CredentialStore using GORM.
type accountStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAccountStore is the constructor for accountStore.
// It returns the store as a repository.CredentialStore interface, adhering to dependency inversion.
func NewAccountStore(db *gorm.DB) repository.CredentialStore {
	return &accountStore{
		db:  db,
		now: time.Now,
	}
}

// InsertIfAbsent relies on the unique index: ON CONFLICT DO NOTHING turns a
// lost race into zero affected rows instead of an error.
// CreatedAt is truncated to microseconds, the precision of TIMESTAMPTZ, so the
// returned account matches a later read.
func (s *accountStore) InsertIfAbsent(ctx context.Context, identifier, passwordHash string) (*entity.Account, error) {
	accountM := &model.AccountModel{
		ID:           uuid.New(),
		Identifier:   identifier,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identifier"}},
			DoNothing: true,
		}).
		Create(accountM)

	if result.Error != nil {
		if isUniqueConstraintViolation(result.Error) {
			return nil, repository.ErrAccountExists
		}

		return nil, domainerrors.NewStoreError(errors.Wrap(result.Error, "failed to insert account"), "insert account")
	}

	if result.RowsAffected == 0 {
		return nil, repository.ErrAccountExists
	}

	return toAccountDomain(accountM), nil
}

// FindByIdentifier retrieves a single account by its normalized identifier.
func (s *accountStore) FindByIdentifier(ctx context.Context, identifier string) (*entity.Account, error) {
	var accountM model.AccountModel

	err := s.db.WithContext(ctx).
		Where("identifier = ?", identifier).
		Take(&accountM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, domainerrors.NewStoreError(errors.Wrap(err, "failed to find account by identifier"), "find account")
	}

	return toAccountDomain(&accountM), nil
}

func toAccountDomain(m *model.AccountModel) *entity.Account {
	return &entity.Account{
		ID:           m.ID,
		Identifier:   m.Identifier,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}
