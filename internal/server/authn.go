package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jacksonlee411/rank-math-api/internal/routing"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
	"github.com/jacksonlee411/rank-math-api/pkg/logger"
	"github.com/jacksonlee411/rank-math-api/pkg/pgerr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidCredentials = errors.New("server: invalid credentials")

const (
	schemeBasic  = "basic"
	schemeBearer = "bearer"
)

type authFailureObserver interface {
	ObserveAuthFailure(scheme string)
}

// authenticator resolves the Authorization header to a principal. Basic
// credentials are a login plus an application password; bearer tokens are
// HS256 JWTs whose subject is the user id.
type authenticator struct {
	principals principalStore
	jwtSecret  []byte
	jwtIssuer  string
	now        func() time.Time
}

func newAuthenticator(principals principalStore, jwtSecret string, jwtIssuer string) *authenticator {
	return &authenticator{
		principals: principals,
		jwtSecret:  []byte(jwtSecret),
		jwtIssuer:  strings.TrimSpace(jwtIssuer),
		now:        time.Now,
	}
}

// Authenticate returns the anonymous principal when no credentials are sent.
func (a *authenticator) Authenticate(r *http.Request) (types.Principal, string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return types.Principal{}, "", nil
	}
	scheme, rest, _ := strings.Cut(header, " ")
	switch strings.ToLower(scheme) {
	case schemeBasic:
		login, password, ok := r.BasicAuth()
		if !ok {
			return types.Principal{}, schemeBasic, errInvalidCredentials
		}
		p, err := a.authenticateAppPassword(r.Context(), login, password)
		return p, schemeBasic, err
	case schemeBearer:
		p, err := a.authenticateToken(r.Context(), strings.TrimSpace(rest))
		return p, schemeBearer, err
	default:
		return types.Principal{}, strings.ToLower(scheme), errInvalidCredentials
	}
}

func (a *authenticator) authenticateAppPassword(ctx context.Context, login string, password string) (types.Principal, error) {
	login = strings.TrimSpace(login)
	password = NormalizeAppPassword(password)
	if login == "" || password == "" {
		return types.Principal{}, errInvalidCredentials
	}

	p, passwords, ok, err := a.principals.LookupLogin(ctx, login)
	if err != nil {
		return types.Principal{}, err
	}
	if !ok || p.Status != principalStatusActive {
		return types.Principal{}, errInvalidCredentials
	}
	for _, pw := range passwords {
		if bcrypt.CompareHashAndPassword([]byte(pw.Hash), []byte(password)) == nil {
			if err := a.principals.TouchAppPassword(ctx, pw.ID); err != nil {
				logger.FromContext(ctx, nil).Warn("touch app password failed", pgerr.Fields(err, zap.Int64("app_password_id", pw.ID))...)
			}
			return p, nil
		}
	}
	return types.Principal{}, errInvalidCredentials
}

func (a *authenticator) authenticateToken(ctx context.Context, raw string) (types.Principal, error) {
	if len(a.jwtSecret) == 0 || raw == "" {
		return types.Principal{}, errInvalidCredentials
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(a.jwtIssuer))
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, opts...)
	if err != nil {
		return types.Principal{}, errInvalidCredentials
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return types.Principal{}, errInvalidCredentials
	}
	p, ok, err := a.principals.GetByID(ctx, id)
	if err != nil {
		return types.Principal{}, err
	}
	if !ok || p.Status != principalStatusActive {
		return types.Principal{}, errInvalidCredentials
	}
	return p, nil
}

// NormalizeAppPassword drops the grouping spaces and punctuation clients copy
// along with a generated application password. Hashes are stored over the
// normalized form.
func NormalizeAppPassword(pw string) string {
	var b strings.Builder
	for _, ch := range pw {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func withAuthentication(classifier *routing.Classifier, authn *authenticator, failures authFailureObserver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := classifier.Classify(r.URL.Path)
		if rc == routing.RouteClassOps {
			next.ServeHTTP(w, r)
			return
		}

		p, scheme, err := authn.Authenticate(r)
		if err != nil {
			if errors.Is(err, errInvalidCredentials) {
				if failures != nil {
					failures.ObserveAuthFailure(scheme)
				}
				routing.WriteError(w, r, rc, http.StatusUnauthorized, "invalid_credentials", "Unknown username or incorrect password.")
				return
			}
			logger.FromContext(r.Context(), nil).Error("authentication lookup failed", pgerr.Fields(err, zap.String("scheme", scheme))...)
			routing.WriteError(w, r, rc, http.StatusServiceUnavailable, "unavailable", "")
			return
		}
		if !p.IsAnonymous() {
			r = r.WithContext(logger.WithContext(r.Context(), logger.FromContext(r.Context(), nil).With(zap.Int64("principal_id", p.ID))))
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}
