package server

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
)

const principalStatusActive = "active"

// appPassword is one stored application password; Hash is a bcrypt digest.
type appPassword struct {
	ID   int64
	Hash string
}

type principalStore interface {
	// LookupLogin returns the user with login and every application
	// password hash registered for it.
	LookupLogin(ctx context.Context, login string) (types.Principal, []appPassword, bool, error)
	GetByID(ctx context.Context, id int64) (types.Principal, bool, error)
	TouchAppPassword(ctx context.Context, id int64) error
}

type memoryPrincipalStore struct {
	mu        sync.Mutex
	nextID    int64
	nextPwID  int64
	byLogin   map[string]int64
	byID      map[int64]types.Principal
	passwords map[int64][]appPassword
}

func newMemoryPrincipalStore() *memoryPrincipalStore {
	return &memoryPrincipalStore{
		byLogin:   map[string]int64{},
		byID:      map[int64]types.Principal{},
		passwords: map[int64][]appPassword{},
	}
}

// AddUser registers an active user and returns it with its assigned ID.
func (s *memoryPrincipalStore) AddUser(login string, role string) types.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()

	login = strings.ToLower(strings.TrimSpace(login))
	if id, ok := s.byLogin[login]; ok {
		return s.byID[id]
	}
	s.nextID++
	p := types.Principal{ID: s.nextID, Login: login, Role: role, Status: principalStatusActive}
	s.byLogin[login] = p.ID
	s.byID[p.ID] = p
	return p
}

func (s *memoryPrincipalStore) AddAppPassword(userID int64, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPwID++
	s.passwords[userID] = append(s.passwords[userID], appPassword{ID: s.nextPwID, Hash: hash})
}

func (s *memoryPrincipalStore) SetStatus(userID int64, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.byID[userID]; ok {
		p.Status = status
		s.byID[userID] = p
	}
}

func (s *memoryPrincipalStore) LookupLogin(_ context.Context, login string) (types.Principal, []appPassword, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byLogin[strings.ToLower(strings.TrimSpace(login))]
	if !ok {
		return types.Principal{}, nil, false, nil
	}
	pws := append([]appPassword(nil), s.passwords[id]...)
	return s.byID[id], pws, true, nil
}

func (s *memoryPrincipalStore) GetByID(_ context.Context, id int64) (types.Principal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	return p, ok, nil
}

func (s *memoryPrincipalStore) TouchAppPassword(context.Context, int64) error { return nil }

type pgPrincipalStore struct {
	q queryExecer
}

type queryExecer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func newPGPrincipalStore(q queryExecer) *pgPrincipalStore {
	return &pgPrincipalStore{q: q}
}

func (s *pgPrincipalStore) LookupLogin(ctx context.Context, login string) (types.Principal, []appPassword, bool, error) {
	var p types.Principal
	err := s.q.QueryRow(ctx, `
SELECT id, login, role, status
FROM users
WHERE login = $1;
`, strings.ToLower(strings.TrimSpace(login))).Scan(&p.ID, &p.Login, &p.Role, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Principal{}, nil, false, nil
		}
		return types.Principal{}, nil, false, err
	}

	rows, err := s.q.Query(ctx, `
SELECT id, password_hash
FROM application_passwords
WHERE user_id = $1
ORDER BY id;
`, p.ID)
	if err != nil {
		return types.Principal{}, nil, false, err
	}
	defer rows.Close()

	var out []appPassword
	for rows.Next() {
		var pw appPassword
		if err := rows.Scan(&pw.ID, &pw.Hash); err != nil {
			return types.Principal{}, nil, false, err
		}
		out = append(out, pw)
	}
	if err := rows.Err(); err != nil {
		return types.Principal{}, nil, false, err
	}
	return p, out, true, nil
}

func (s *pgPrincipalStore) GetByID(ctx context.Context, id int64) (types.Principal, bool, error) {
	var p types.Principal
	err := s.q.QueryRow(ctx, `
SELECT id, login, role, status
FROM users
WHERE id = $1;
`, id).Scan(&p.ID, &p.Login, &p.Role, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Principal{}, false, nil
		}
		return types.Principal{}, false, err
	}
	return p, true, nil
}

func (s *pgPrincipalStore) TouchAppPassword(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `UPDATE application_passwords SET last_used_at = now() WHERE id = $1;`, id)
	return err
}
