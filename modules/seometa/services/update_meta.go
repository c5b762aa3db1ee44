package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/ports"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
	"github.com/jacksonlee411/rank-math-api/pkg/httperr"
	"github.com/jacksonlee411/rank-math-api/pkg/logger"
	"github.com/jacksonlee411/rank-math-api/pkg/pgerr"
	"go.uber.org/zap"
)

var (
	ErrForbidden        = httperr.NewForbidden("rest_forbidden", "You do not have permission to edit this post.")
	ErrNoFieldsProvided = httperr.NewBadRequest("No Rank Math fields were provided for update.")
	ErrItemNotFound     = errors.New("seometa: item not found")
	ErrItemNotEligible  = errors.New("seometa: item kind not eligible")
	ErrPermissionCheck  = errors.New("seometa: permission check failed")
)

type Options struct {
	Store       ports.ContentStore
	Eligibility *Eligibility
	Permissions Permissions
	Logger      *zap.Logger
	Observer    ports.OutcomeObserver
}

// MetaService applies SEO metadata updates to content items.
//
// The read of a field's current value and the following write are separate
// store calls with no lock between them; concurrent requests for the same
// field can both observe the old value and both write.
type MetaService struct {
	store       ports.ContentStore
	eligibility *Eligibility
	perms       Permissions
	logger      *zap.Logger
	observer    ports.OutcomeObserver
}

func NewMetaService(opts Options) *MetaService {
	l := opts.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &MetaService{
		store:       opts.Store,
		eligibility: opts.Eligibility,
		perms:       opts.Permissions,
		logger:      l,
		observer:    opts.Observer,
	}
}

// ValidateItem resolves id to an existing item of an eligible kind.
func (s *MetaService) ValidateItem(ctx context.Context, id int64) (types.ContentItem, error) {
	item, ok, err := s.store.GetItem(ctx, id)
	if err != nil {
		return types.ContentItem{}, fmt.Errorf("get item %d: %w", id, err)
	}
	if !ok {
		return types.ContentItem{}, ErrItemNotFound
	}
	allowed, err := s.eligibility.Allows(ctx, item)
	if err != nil {
		return types.ContentItem{}, err
	}
	if !allowed {
		return types.ContentItem{}, ErrItemNotEligible
	}
	return item, nil
}

func (s *MetaService) CanEditPosts(ctx context.Context, p types.Principal) (bool, error) {
	ok, err := s.perms.CanEditPosts(ctx, p)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPermissionCheck, err)
	}
	return ok, nil
}

// UpdateMeta checks the per-item capability, then for each supplied field
// writes the value only when it differs from the stored one. A failed read
// or write marks that field failed and processing continues.
func (s *MetaService) UpdateMeta(ctx context.Context, p types.Principal, req types.UpdateRequest) (types.UpdateResult, error) {
	log := logger.FromContext(ctx, s.logger).With(zap.Int64("post_id", req.ItemID))

	item, ok, err := s.store.GetItem(ctx, req.ItemID)
	if err != nil {
		return types.UpdateResult{}, fmt.Errorf("get item %d: %w", req.ItemID, err)
	}
	if !ok {
		return types.UpdateResult{}, ErrForbidden
	}
	allowed, err := s.perms.CanEditItem(ctx, p, item)
	if err != nil {
		return types.UpdateResult{}, fmt.Errorf("%w: %w", ErrPermissionCheck, err)
	}
	if !allowed {
		log.Info("item edit denied", zap.Int64("principal_id", p.ID), zap.String("role", p.Role))
		return types.UpdateResult{}, ErrForbidden
	}

	if req.Fields.Empty() {
		return types.UpdateResult{}, ErrNoFieldsProvided
	}

	var result types.UpdateResult
	for _, f := range types.Fields {
		v := req.Fields.Get(f)
		if !v.Set {
			continue
		}
		outcome := s.applyField(ctx, log, req.ItemID, f, v.Value)
		result.Record(f, outcome)
		if s.observer != nil {
			s.observer.ObserveField(string(f), string(outcome))
		}
	}
	return result, nil
}

func (s *MetaService) applyField(ctx context.Context, log *zap.Logger, id int64, f types.Field, value string) types.Outcome {
	current, err := s.store.GetMeta(ctx, id, string(f))
	if err != nil {
		log.Error("read meta failed", pgerr.Fields(err, zap.String("field", string(f)))...)
		return types.OutcomeFailed
	}
	if current == value {
		return types.OutcomeUnchanged
	}
	written, err := s.store.SetMeta(ctx, id, string(f), value)
	if err != nil {
		log.Error("write meta failed", pgerr.Fields(err, zap.String("field", string(f)))...)
		return types.OutcomeFailed
	}
	if !written {
		log.Warn("write meta reported no change", zap.String("field", string(f)))
		return types.OutcomeFailed
	}
	return types.OutcomeUpdated
}
