package database

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
)

// Provider hands out the pool that stores a company's shipments.
type Provider interface {
	ForCompany(ctx context.Context, companyID int64) (DB, error)
	Close() error
}

// StaticProvider serves every company from one pool.
type StaticProvider struct {
	db DB
}

func NewStaticProvider(db DB) *StaticProvider {
	return &StaticProvider{db: db}
}

func (p *StaticProvider) ForCompany(_ context.Context, _ int64) (DB, error) {
	return p.db, nil
}

func (p *StaticProvider) Close() error {
	return p.db.Close()
}

func (p *StaticProvider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// RegistryClient reads the company registry document
type RegistryClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// companyDatabase is one entry of the registry document.
type companyDatabase struct {
	Name     string `json:"dbname"`
	User     string `json:"dbuser"`
	Password string `json:"dbpass"`
	Host     string `json:"dbhost,omitempty"`
	Port     string `json:"dbport,omitempty"`
}

// OpenFunc opens a pool, usually Open
type OpenFunc func(ctx context.Context, settings Settings, logger ectologger.Logger) (DB, error)

// CompanyRegistry opens one pool per company from a Redis JSON document keyed by company id.
// Pools are opened lazily and kept until Close.
type CompanyRegistry struct {
	client RegistryClient
	key    string
	base   Settings
	open   OpenFunc
	logger ectologger.Logger

	mu    sync.Mutex
	pools map[int64]DB
}

// NewCompanyRegistry creates a registry. base supplies the driver, host and pool limits that
// registry entries do not override.
func NewCompanyRegistry(client RegistryClient, key string, base Settings, open OpenFunc, logger ectologger.Logger) *CompanyRegistry {
	if open == nil {
		open = Open
	}
	return &CompanyRegistry{
		client: client,
		key:    key,
		base:   base,
		open:   open,
		logger: logger,
		pools:  make(map[int64]DB),
	}
}

func (r *CompanyRegistry) ForCompany(ctx context.Context, companyID int64) (DB, error) {
	r.mu.Lock()
	db, ok := r.pools[companyID]
	r.mu.Unlock()
	if ok {
		return db, nil
	}

	settings, err := r.settingsFor(ctx, companyID)
	if err != nil {
		return nil, err
	}

	db, err = r.open(ctx, settings, r.logger)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransport, err, "failed to open company database").AddCompany(companyID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pools[companyID]; ok {
		_ = db.Close()
		return existing, nil
	}
	r.pools[companyID] = db
	return db, nil
}

func (r *CompanyRegistry) settingsFor(ctx context.Context, companyID int64) (Settings, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Settings{}, apperrors.Newf(apperrors.KindNotFound, "company registry %s is empty", r.key).AddCompany(companyID)
	}
	if err != nil {
		return Settings{}, apperrors.Wrap(apperrors.KindTransport, err, "failed to read company registry").AddCompany(companyID)
	}

	var entries map[string]companyDatabase
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Settings{}, apperrors.Wrap(apperrors.KindTransport, err, "company registry is not valid JSON").AddCompany(companyID)
	}

	entry, ok := entries[strconv.FormatInt(companyID, 10)]
	if !ok || entry.Name == "" {
		return Settings{}, apperrors.Newf(apperrors.KindNotFound, "company %d has no database", companyID).AddCompany(companyID)
	}

	settings := r.base
	settings.Name = entry.Name
	settings.User = entry.User
	settings.Password = entry.Password
	if entry.Host != "" {
		settings.Host = entry.Host
	}
	if entry.Port != "" {
		settings.Port = entry.Port
	}
	return settings, nil
}

// Close closes every pool opened so far
func (r *CompanyRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for companyID, db := range r.pools {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.pools, companyID)
	}
	return errors.Join(errs...)
}

// Ping checks every open pool
func (r *CompanyRegistry) Ping(ctx context.Context) error {
	r.mu.Lock()
	pools := make([]DB, 0, len(r.pools))
	for _, db := range r.pools {
		pools = append(pools, db)
	}
	r.mu.Unlock()

	for _, db := range pools {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}
