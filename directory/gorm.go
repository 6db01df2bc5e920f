package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PrincipalModel is the principals table row.
type PrincipalModel struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	TenantID     string    `gorm:"index:idx_principals_tenant_username,unique;not null"`
	Username     string    `gorm:"index:idx_principals_tenant_username,unique;not null"`
	Email        string    `gorm:"not null;default:''"`
	PasswordHash string    `gorm:"not null"`
	Roles        []string  `gorm:"serializer:json;not null"`
	Active       bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName implements gorm's tabler.
func (PrincipalModel) TableName() string {
	return "principals"
}

func (m PrincipalModel) record() *Record {
	return &Record{
		Principal: Principal{
			ID:       m.ID,
			TenantID: m.TenantID,
			Username: m.Username,
			Email:    m.Email,
			Roles:    m.Roles,
			Active:   m.Active,
		},
		PasswordHash: m.PasswordHash,
	}
}

// Gorm is a [Directory] over a gorm connection.
type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects to Postgres with the given DSN.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// NewGorm wraps db. A nil db yields a directory that always reports [ErrUnavailable].
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// Migrate creates or updates the principals table.
func (g *Gorm) Migrate(ctx context.Context) error {
	if g.db == nil {
		return ErrUnavailable
	}
	return g.db.WithContext(ctx).AutoMigrate(&PrincipalModel{})
}

// FindByUsername implements [Directory].
func (g *Gorm) FindByUsername(ctx context.Context, tenantID, username string) (*Record, error) {
	return g.first(ctx, "tenant_id = ? AND username = ?", tenantID, username)
}

// FindByID implements [Directory].
func (g *Gorm) FindByID(ctx context.Context, tenantID, id string) (*Record, error) {
	return g.first(ctx, "tenant_id = ? AND id = ?", tenantID, id)
}

func (g *Gorm) first(ctx context.Context, query string, args ...any) (*Record, error) {
	if g.db == nil {
		return nil, ErrUnavailable
	}
	var row PrincipalModel
	err := g.db.WithContext(ctx).Where(query, args...).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return row.record(), nil
}
