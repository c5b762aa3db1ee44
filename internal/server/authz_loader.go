package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/jacksonlee411/rank-math-api/internal/config"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/infrastructure/policy"
	"github.com/jacksonlee411/rank-math-api/pkg/authz"
)

func loadAuthorizer(cfg config.AuthzConfig) (*authz.Authorizer, error) {
	modelPath := cfg.ModelPath
	if modelPath == "" {
		p, err := defaultAuthzModelPath()
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := cfg.PolicyPath
	if policyPath == "" {
		p, err := defaultAuthzPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ParseMode(cfg.Mode, cfg.UnsafeAllowDisabled)
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

// loadItemPolicy uses the embedded rego policy unless a file is configured.
func loadItemPolicy(ctx context.Context, cfg config.AuthzConfig) (*policy.ItemPolicy, error) {
	return policy.NewItemPolicy(ctx, cfg.ItemPolicyPath)
}

func defaultAuthzModelPath() (string, error) {
	return findUpward("config/access/model.conf", "server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	return findUpward("config/access/policy.csv", "server: authz policy not found")
}

func defaultAllowlistPath() (string, error) {
	return findUpward("config/routing/allowlist.yaml", "server: allowlist not found")
}

func findUpward(path string, notFound string) (string, error) {
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New(notFound)
}
