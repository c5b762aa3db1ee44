package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
	"github.com/jacksonlee411/rank-math-api/pkg/httperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	editor = types.Principal{ID: 9, Login: "ed", Role: "editor"}
	author = types.Principal{ID: 5, Login: "au", Role: "author"}
)

func newTestService(t *testing.T, store *fakeStore, flags staticFlags) *MetaService {
	t.Helper()
	e, err := NewEligibility(DefaultEligibilityExpression, nil, flags)
	require.NoError(t, err)
	return NewMetaService(Options{
		Store:       store,
		Eligibility: e,
		Permissions: NewPermissions(ownerPolicy{}, defaultGrants, ""),
	})
}

func fields(kv ...string) types.FieldValues {
	var v types.FieldValues
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(types.Field(kv[i]), kv[i+1])
	}
	return v
}

func TestUpdateMeta_Scenario42(t *testing.T) {
	t.Parallel()

	store := newFakeStore(types.ContentItem{ID: 42, Kind: types.KindPost, AuthorID: 5, Status: types.StatusPublish})
	store.seed(42, "rank_math_title", "Old")
	store.seed(42, "rank_math_description", "Old")
	svc := newTestService(t, store, nil)

	res, err := svc.UpdateMeta(context.Background(), editor, types.UpdateRequest{
		ItemID: 42,
		Fields: fields("rank_math_title", "New", "rank_math_description", "Old"),
	})
	require.NoError(t, err)

	b, err := res.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"rank_math_title":"updated","rank_math_description":"unchanged"}`, string(b))
	assert.Equal(t, []string{"rank_math_title"}, store.writes)
	assert.Equal(t, "New", store.value(42, "rank_math_title"))
}

func TestUpdateMeta_Idempotence(t *testing.T) {
	t.Parallel()

	store := newFakeStore(types.ContentItem{ID: 1, Kind: types.KindPost, AuthorID: 5})
	svc := newTestService(t, store, nil)
	req := types.UpdateRequest{ItemID: 1, Fields: fields("rank_math_canonical_url", "https://example.com/a")}

	first, err := svc.UpdateMeta(context.Background(), author, req)
	require.NoError(t, err)
	second, err := svc.UpdateMeta(context.Background(), author, req)
	require.NoError(t, err)

	o1, _ := first.Get(types.FieldCanonicalURL)
	o2, _ := second.Get(types.FieldCanonicalURL)
	assert.Equal(t, types.OutcomeUpdated, o1)
	assert.Equal(t, types.OutcomeUnchanged, o2)
	assert.Equal(t, "https://example.com/a", store.value(1, "rank_math_canonical_url"))
	assert.Len(t, store.writes, 1)
}

func TestUpdateMeta_Independence(t *testing.T) {
	t.Parallel()

	store := newFakeStore(types.ContentItem{ID: 1, Kind: types.KindPost, AuthorID: 5})
	store.seed(1, "rank_math_description", "desc")
	store.seed(1, "rank_math_canonical_url", "https://example.com/")
	svc := newTestService(t, store, nil)

	_, err := svc.UpdateMeta(context.Background(), author, types.UpdateRequest{ItemID: 1, Fields: fields("rank_math_title", "T")})
	require.NoError(t, err)

	assert.Equal(t, "desc", store.value(1, "rank_math_description"))
	assert.Equal(t, "https://example.com/", store.value(1, "rank_math_canonical_url"))
	assert.Equal(t, []string{"rank_math_title"}, store.reads)
}

func TestUpdateMeta_NoOpNeverWrites(t *testing.T) {
	t.Parallel()

	store := newFakeStore(types.ContentItem{ID: 1, Kind: types.KindPost, AuthorID: 5})
	store.seed(1, "rank_math_title", "A")
	store.seed(1, "rank_math_description", "B")
	store.seed(1, "rank_math_canonical_url", "C")
	svc := newTestService(t, store, nil)

	res, err := svc.UpdateMeta(context.Background(), author, types.UpdateRequest{
		ItemID: 1,
		Fields: fields("rank_math_title", "A", "rank_math_description", "B", "rank_math_canonical_url", "C"),
	})
	require.NoError(t, err)
	assert.Empty(t, store.writes)
	assert.Equal(t, 3, res.Len())
	for _, f := range types.Fields {
		o, ok := res.Get(f)
		assert.True(t, ok, f)
		assert.Equal(t, types.OutcomeUnchanged, o, f)
	}
}

func TestUpdateMeta_EmptyStringForUnsetFieldIsUnchanged(t *testing.T) {
	t.Parallel()

	store := newFakeStore(types.ContentItem{ID: 1, Kind: types.KindPost, AuthorID: 5})
	svc := newTestService(t, store, nil)

	res, err := svc.UpdateMeta(context.Background(), author, types.UpdateRequest{ItemID: 1, Fields: fields("rank_math_title", "")})
	require.NoError(t, err)
	o, ok := res.Get(types.FieldTitle)
	require.True(t, ok)
	assert.Equal(t, types.OutcomeUnchanged, o)
	assert.Empty(t, store.writes)
}

func TestUpdateMeta_AuthorizationGate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		principal types.Principal
		item      types.ContentItem
	}{
		{name: "scenario 7 author on others post", principal: author, item: types.ContentItem{ID: 7, Kind: types.KindPost, AuthorID: 99}},
		{name: "anonymous", principal: types.Principal{}, item: types.ContentItem{ID: 7, Kind: types.KindPost, AuthorID: 0}},
		{name: "subscriber own post", principal: types.Principal{ID: 3, Role: "subscriber"}, item: types.ContentItem{ID: 7, Kind: types.KindPost, AuthorID: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore(tc.item)
			store.seed(7, "rank_math_title", "Keep")
			svc := newTestService(t, store, nil)

			_, err := svc.UpdateMeta(context.Background(), tc.principal, types.UpdateRequest{
				ItemID: 7,
				Fields: fields("rank_math_title", "Changed", "rank_math_description", "x"),
			})
			require.ErrorIs(t, err, ErrForbidden)
			assert.True(t, httperr.IsForbidden(err))
			assert.Equal(t, "rest_forbidden", httperr.ForbiddenCode(err))
			assert.Empty(t, store.reads)
			assert.Empty(t, store.writes)
			assert.Equal(t, "Keep", store.value(7, "rank_math_title"))
		})
	}
}

func TestUpdateMeta_ForbiddenBeforeEmptyPayload(t *testing.T) {
	t.Parallel()

	store := newFakeStore(types.ContentItem{ID: 7, Kind: types.KindPost, AuthorID: 99})
	svc := newTestService(t, store, nil)

	_, err := svc.UpdateMeta(context.Background(), author, types.UpdateRequest{ItemID: 7})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateMeta_EmptyPayload(t *testing.T) {
	t.Parallel()

	store := newFakeStore(types.ContentItem{ID: 1, Kind: types.KindPost, AuthorID: 5})
	svc := newTestService(t, store, nil)

	_, err := svc.UpdateMeta(context.Background(), editor, types.UpdateRequest{ItemID: 1})
	require.ErrorIs(t, err, ErrNoFieldsProvided)
	assert.True(t, httperr.IsBadRequest(err))
}

func TestUpdateMeta_MissingItemIsForbidden(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakeStore(), nil)
	_, err := svc.UpdateMeta(context.Background(), editor, types.UpdateRequest{ItemID: 404, Fields: fields("rank_math_title", "x")})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateMeta_PartialFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore(types.ContentItem{ID: 1, Kind: types.KindPost, AuthorID: 5})
	store.writeErr["rank_math_title"] = errStore
	store.readErr["rank_math_description"] = errStore
	store.writeNoop["rank_math_canonical_url"] = true

	core, logs := observer.New(zapcore.WarnLevel)
	obs := &recordingObserver{}
	e, err := NewEligibility(DefaultEligibilityExpression, nil, nil)
	require.NoError(t, err)
	svc := NewMetaService(Options{
		Store:       store,
		Eligibility: e,
		Permissions: NewPermissions(ownerPolicy{}, defaultGrants, ""),
		Logger:      zap.New(core),
		Observer:    obs,
	})

	res, err := svc.UpdateMeta(context.Background(), author, types.UpdateRequest{
		ItemID: 1,
		Fields: fields("rank_math_title", "T", "rank_math_description", "D", "rank_math_canonical_url", "https://x.test"),
	})
	require.NoError(t, err)
	b, _ := res.MarshalJSON()
	assert.Equal(t, `{"rank_math_title":"failed","rank_math_description":"failed","rank_math_canonical_url":"failed"}`, string(b))
	assert.Equal(t, []string{"rank_math_title", "rank_math_canonical_url"}, store.writes)
	assert.Equal(t, 3, logs.Len())
	assert.Equal(t, []string{
		"rank_math_title=failed",
		"rank_math_description=failed",
		"rank_math_canonical_url=failed",
	}, obs.seen)
}

func TestUpdateMeta_StoreFailureLogsPGFields(t *testing.T) {
	t.Parallel()

	store := newFakeStore(types.ContentItem{ID: 1, Kind: types.KindPost, AuthorID: 5})
	store.readErr["rank_math_title"] = fmt.Errorf("get meta: %w", &pgconn.PgError{Code: "42P01", TableName: "content_item_meta"})
	store.writeErr["rank_math_description"] = &pgconn.PgError{Code: "23503", ConstraintName: "content_item_meta_item_id_fkey"}

	core, logs := observer.New(zapcore.WarnLevel)
	e, err := NewEligibility(DefaultEligibilityExpression, nil, nil)
	require.NoError(t, err)
	svc := NewMetaService(Options{
		Store:       store,
		Eligibility: e,
		Permissions: NewPermissions(ownerPolicy{}, defaultGrants, ""),
		Logger:      zap.New(core),
	})

	_, err = svc.UpdateMeta(context.Background(), author, types.UpdateRequest{
		ItemID: 1,
		Fields: fields("rank_math_title", "T", "rank_math_description", "D"),
	})
	require.NoError(t, err)

	read := logs.FilterMessage("read meta failed").All()
	require.Len(t, read, 1)
	assert.Equal(t, "42P01", read[0].ContextMap()["pg_code"])
	assert.Equal(t, "content_item_meta", read[0].ContextMap()["pg_table"])

	write := logs.FilterMessage("write meta failed").All()
	require.Len(t, write, 1)
	assert.Equal(t, "23503", write[0].ContextMap()["pg_code"])
	assert.Equal(t, "content_item_meta_item_id_fkey", write[0].ContextMap()["pg_constraint"])
}

func TestUpdateMeta_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	req := types.UpdateRequest{ItemID: 1, Fields: fields("rank_math_title", "x")}
	item := types.ContentItem{ID: 1, Kind: types.KindPost, AuthorID: 5}

	store := newFakeStore(item)
	store.getItemErr = errStore
	_, err := newTestService(t, store, nil).UpdateMeta(ctx, author, req)
	require.ErrorIs(t, err, errStore)

	e, err := NewEligibility(DefaultEligibilityExpression, nil, nil)
	require.NoError(t, err)
	svc := NewMetaService(Options{
		Store:       newFakeStore(item),
		Eligibility: e,
		Permissions: NewPermissions(ownerPolicy{err: errors.New("rego")}, defaultGrants, ""),
	})
	_, err = svc.UpdateMeta(ctx, author, req)
	require.ErrorIs(t, err, ErrPermissionCheck)

	svc = NewMetaService(Options{
		Store:       newFakeStore(item),
		Eligibility: e,
		Permissions: NewPermissions(ownerPolicy{}, grantTable{err: errors.New("casbin")}, ""),
	})
	_, err = svc.UpdateMeta(ctx, author, req)
	require.ErrorIs(t, err, ErrPermissionCheck)
	_, err = svc.CanEditPosts(ctx, author)
	require.ErrorIs(t, err, ErrPermissionCheck)
}

func TestValidateItem_EligibilityGate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	product := types.ContentItem{ID: 8, Kind: types.KindProduct, AuthorID: 9}

	store := newFakeStore(product, types.ContentItem{ID: 42, Kind: types.KindPost})
	svc := newTestService(t, store, nil)

	_, err := svc.ValidateItem(ctx, 8)
	require.ErrorIs(t, err, ErrItemNotEligible)
	_, err = svc.ValidateItem(ctx, 999)
	require.ErrorIs(t, err, ErrItemNotFound)
	got, err := svc.ValidateItem(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)

	withCompanion := newTestService(t, store, staticFlags{CompanionWooCommerce: true})
	got, err = withCompanion.ValidateItem(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, product, got)
	assert.Empty(t, store.reads)

	broken := newFakeStore()
	broken.getItemErr = errStore
	_, err = newTestService(t, broken, nil).ValidateItem(ctx, 1)
	require.ErrorIs(t, err, errStore)
}

func TestCanEditPosts(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakeStore(), nil)
	ctx := context.Background()

	ok, err := svc.CanEditPosts(ctx, editor)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanEditPosts(ctx, types.Principal{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CanEditPosts(ctx, types.Principal{ID: 4, Role: "subscriber"})
	require.NoError(t, err)
	assert.False(t, ok)
}
