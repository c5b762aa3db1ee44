package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/rank-math-api/internal/config"
	"github.com/jacksonlee411/rank-math-api/internal/metrics"
	"github.com/jacksonlee411/rank-math-api/internal/routing"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/ports"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/infrastructure/featureflag"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/infrastructure/persistence"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/presentation/controllers"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/services"
	"github.com/jacksonlee411/rank-math-api/pkg/authz"
	"github.com/jacksonlee411/rank-math-api/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	updateMetaPath     = "/rank-math-api/v1/update-meta"
	flagProviderDomain = "seometa"
)

type HandlerOptions struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry

	// Pool is used for the Postgres stores when set; otherwise one is opened
	// from Config.Database when the store driver is postgres.
	Pool         *pgxpool.Pool
	ContentStore ports.ContentStore
	Principals   principalStore
	Flags        ports.CompanionFlags
}

func NewHandler(cfg *config.Config, log *zap.Logger) (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{Config: cfg, Logger: log})
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("server: missing config")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ctx := context.Background()

	allowlistPath := cfg.Routing.AllowlistPath
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}
	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	contentStore := opts.ContentStore
	principals := opts.Principals
	if contentStore == nil || principals == nil {
		switch cfg.Store.Driver {
		case "memory":
			if contentStore == nil {
				contentStore = persistence.NewContentMemoryStore()
			}
			if principals == nil {
				principals = newMemoryPrincipalStore()
			}
		default:
			pool := opts.Pool
			if pool == nil {
				pool, err = pgxpool.New(ctx, cfg.Database.DSN())
				if err != nil {
					return nil, err
				}
			}
			if contentStore == nil {
				contentStore = persistence.NewContentPGStore(pool)
			}
			if principals == nil {
				principals = newPGPrincipalStore(pool)
			}
		}
	}

	authorizer, err := loadAuthorizer(cfg.Authz)
	if err != nil {
		return nil, err
	}
	if mode := authorizer.Mode(); mode != authz.ModeEnforce {
		log.Warn("authorization not enforced", zap.String("authz_mode", string(mode)))
	}
	itemPolicy, err := loadItemPolicy(ctx, cfg.Authz)
	if err != nil {
		return nil, err
	}

	flags := opts.Flags
	if flags == nil {
		// OpenFeature providers are process-wide; each handler gets its own domain.
		f, err := featureflag.NewStaticFlags(flagProviderDomain+"/"+uuid.NewString(), map[string]bool{
			services.CompanionWooCommerce: cfg.Companion.WooCommerce,
		})
		if err != nil {
			return nil, err
		}
		flags = f
	}
	eligibility, err := services.NewEligibility(cfg.Eligibility.Expression, services.DefaultKindRegistry(), flags)
	if err != nil {
		return nil, err
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.New(reg)

	svc := services.NewMetaService(services.Options{
		Store:       contentStore,
		Eligibility: eligibility,
		Permissions: services.NewPermissions(itemPolicy, authorizer, cfg.Authz.Site),
		Logger:      log,
		Observer:    m,
	})
	updateMeta := controllers.UpdateMetaController{
		Principal: principalOrAnonymous,
		Service:   svc,
		Logger:    log,
	}

	router := routing.NewRouter(classifier)
	router.OnPanic(func(r *http.Request, recovered any, stack []byte) {
		logger.FromContext(r.Context(), log).Error("handler panic",
			zap.Any("panic", recovered),
			zap.ByteString("stack", stack),
		)
	})

	health := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	routes := []struct {
		rc     routing.RouteClass
		method string
		path   string
		h      http.Handler
	}{
		{routing.RouteClassOps, http.MethodGet, "/health", health},
		{routing.RouteClassOps, http.MethodGet, "/healthz", health},
		{routing.RouteClassOps, http.MethodGet, "/metrics", m.Handler()},
		{routing.RouteClassPublicAPI, http.MethodPost, updateMetaPath, http.HandlerFunc(updateMeta.HandleUpdateMetaAPI)},
		{routing.RouteClassPublicAPI, http.MethodPost, routing.RESTPrefix + updateMetaPath, http.HandlerFunc(updateMeta.HandleUpdateMetaAPI)},
	}
	for _, rt := range routes {
		if !a.Allows("server", rt.method, rt.path) {
			return nil, fmt.Errorf("server: route %s %s is not in the allowlist", rt.method, rt.path)
		}
		router.Handle(rt.rc, rt.method, rt.path, rt.h)
	}

	authn := newAuthenticator(principals, cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	return routing.WithRequestIDs(
		withRequestLogging(log, m, classifier,
			withAuthentication(classifier, authn, m, router),
		),
	), nil
}

func MustNewHandler(cfg *config.Config, log *zap.Logger) http.Handler {
	h, err := NewHandler(cfg, log)
	if err != nil {
		panic(err)
	}
	return h
}
