package services

import (
	"context"
	"errors"
	"sync"

	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
	"github.com/jacksonlee411/rank-math-api/pkg/authz"
)

type fakeStore struct {
	mu    sync.Mutex
	items map[int64]types.ContentItem
	meta  map[int64]map[string]string

	getItemErr error
	readErr    map[string]error
	writeErr   map[string]error
	writeNoop  map[string]bool

	reads  []string
	writes []string
}

func newFakeStore(items ...types.ContentItem) *fakeStore {
	s := &fakeStore{
		items:     map[int64]types.ContentItem{},
		meta:      map[int64]map[string]string{},
		readErr:   map[string]error{},
		writeErr:  map[string]error{},
		writeNoop: map[string]bool{},
	}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *fakeStore) seed(id int64, key, value string) {
	if s.meta[id] == nil {
		s.meta[id] = map[string]string{}
	}
	s.meta[id][key] = value
}

func (s *fakeStore) value(id int64, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[id][key]
}

func (s *fakeStore) GetItem(_ context.Context, id int64) (types.ContentItem, bool, error) {
	if s.getItemErr != nil {
		return types.ContentItem{}, false, s.getItemErr
	}
	it, ok := s.items[id]
	return it, ok, nil
}

func (s *fakeStore) GetMeta(_ context.Context, id int64, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, key)
	if err := s.readErr[key]; err != nil {
		return "", err
	}
	return s.meta[id][key], nil
}

func (s *fakeStore) SetMeta(_ context.Context, id int64, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, key)
	if err := s.writeErr[key]; err != nil {
		return false, err
	}
	if s.writeNoop[key] {
		return false, nil
	}
	if s.meta[id] == nil {
		s.meta[id] = map[string]string{}
	}
	s.meta[id][key] = value
	return true, nil
}

// ownerPolicy mirrors the shipped rego policy closely enough for service
// tests: owners need edit, everyone else edit_others.
type ownerPolicy struct{ err error }

func (p ownerPolicy) RequiredCapabilities(_ context.Context, pr types.Principal, item types.ContentItem) ([]authz.Capability, error) {
	if p.err != nil {
		return nil, p.err
	}
	obj := authz.ObjectForKind(item.Kind)
	switch {
	case pr.IsAnonymous():
		return []authz.Capability{{Object: obj, Action: authz.ActionDoNotAllow}}, nil
	case pr.ID == item.AuthorID:
		return []authz.Capability{{Object: obj, Action: authz.ActionEdit}}, nil
	default:
		return []authz.Capability{{Object: obj, Action: authz.ActionEditOthers}}, nil
	}
}

// grantTable grants capabilities per subject, keyed by Capability.String().
// A shadow table reports its decisions as not enforced.
type grantTable struct {
	grants map[string]map[string]bool
	shadow bool
	err    error
}

func (g grantTable) Decide(subject, _ string, c authz.Capability) (authz.Decision, error) {
	if g.err != nil {
		return authz.Decision{}, g.err
	}
	d := authz.Decision{Enforced: !g.shadow}
	if c.Action != authz.ActionDoNotAllow {
		d.Allowed = g.grants[subject][c.String()]
	}
	return d, nil
}

var defaultGrants = grantTable{grants: map[string]map[string]bool{
	"role:editor": {"edit_posts": true, "edit_others_posts": true, "edit_products": true, "edit_others_products": true},
	"role:author": {"edit_posts": true},
}}

type staticFlags map[string]bool

func (f staticFlags) Active(_ context.Context, companion string) bool { return f[companion] }

type recordingObserver struct {
	mu   sync.Mutex
	seen []string
}

func (o *recordingObserver) ObserveField(field, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, field+"="+outcome)
}

var errStore = errors.New("store down")
