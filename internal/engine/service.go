package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"catering-backend/internal/audit"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

// Service implements the table view and record mutation operations for
// every registered entity.
type Service struct {
	store    *store.Store
	registry *metadata.Registry
	audit    audit.Recorder
	logger   *zap.Logger
}

func NewService(s *store.Store, reg *metadata.Registry, rec audit.Recorder, logger *zap.Logger) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, registry: reg, audit: rec, logger: logger}
}

// Registry returns the schema registry the service was built with.
func (s *Service) Registry() *metadata.Registry {
	return s.registry
}

func (s *Service) resolveEntity(name string) (*metadata.Entity, *metadata.EntityDescriptor, error) {
	desc, err := s.registry.Describe(name)
	if err != nil {
		return nil, nil, UnknownEntityError(name)
	}
	return s.registry.GetEntity(name), desc, nil
}

// fetchRow loads one stored row, or store.ErrNotFound.
func fetchRow(ctx context.Context, q store.Querier, d store.Dialect, entity *metadata.Entity, id int64) (map[string]any, error) {
	qr := BuildByIDsSQL(d, entity, []any{id})
	return store.QueryRow(ctx, q, qr.SQL, qr.Params...)
}

// fetchRecord loads one record with its display strings resolved.
func (s *Service) fetchRecord(ctx context.Context, entity *metadata.Entity, id int64) (Record, error) {
	row, err := fetchRow(ctx, s.store.DB, s.store.Dialect, entity, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Record{}, NotFoundError(entity.Name, id)
		}
		return Record{}, fmt.Errorf("get %s/%d: %w", entity.Name, id, err)
	}
	resolver := newDisplayResolver(s.store.DB, s.store.Dialect, s.registry)
	if err := resolver.preload(ctx, entity, []map[string]any{row}, 0); err != nil {
		return Record{}, err
	}
	return resolver.toRecord(entity, row), nil
}

// notify hands a committed change to the audit recorder.
func (s *Service) notify(ctx context.Context, p *metadata.Principal, action audit.Action, entity string, id int64, display, detail string) {
	s.audit.RecordChanged(ctx, audit.Change{
		Principal: p,
		Action:    action,
		Entity:    entity,
		RecordID:  strconv.FormatInt(id, 10),
		Display:   display,
		Detail:    detail,
	})
}

// Get returns one record after checking the given capability on its entity.
func (s *Service) Get(ctx context.Context, name string, id int64, p *metadata.Principal, action metadata.Action) (*Record, error) {
	entity, _, err := s.resolveEntity(name)
	if err != nil {
		return nil, err
	}
	if err := CheckPermission(p, entity.Name, action); err != nil {
		return nil, err
	}
	rec, err := s.fetchRecord(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
