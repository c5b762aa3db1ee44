// Package featureflag answers companion-module presence through OpenFeature.
package featureflag

import (
	"context"
	"fmt"

	"github.com/open-feature/go-sdk/openfeature"
	"github.com/open-feature/go-sdk/openfeature/memprovider"
)

// FlagKey is the boolean flag consulted for a companion, e.g.
// companion.woocommerce.active.
func FlagKey(companion string) string {
	return "companion." + companion + ".active"
}

type Flags struct {
	client *openfeature.Client
}

// NewFlags wraps a client bound to any OpenFeature provider.
func NewFlags(client *openfeature.Client) *Flags {
	return &Flags{client: client}
}

// NewStaticFlags registers an in-memory provider under domain, seeded with
// one flag per companion, and returns flags backed by it. Registration is
// process-wide: a later call with the same domain replaces the provider seen
// by earlier Flags.
func NewStaticFlags(domain string, companions map[string]bool) (*Flags, error) {
	flags := make(map[string]memprovider.InMemoryFlag, len(companions))
	for name, on := range companions {
		variant := "off"
		if on {
			variant = "on"
		}
		key := FlagKey(name)
		flags[key] = memprovider.InMemoryFlag{
			Key:            key,
			State:          memprovider.Enabled,
			DefaultVariant: variant,
			Variants:       map[string]any{"on": true, "off": false},
		}
	}
	if err := openfeature.SetNamedProviderAndWait(domain, memprovider.NewInMemoryProvider(flags)); err != nil {
		return nil, fmt.Errorf("featureflag: set provider: %w", err)
	}
	return NewFlags(openfeature.NewClient(domain)), nil
}

// Active evaluates the companion flag. Unknown flags and provider errors
// read as inactive.
func (f *Flags) Active(ctx context.Context, companion string) bool {
	v, err := f.client.BooleanValue(ctx, FlagKey(companion), false, openfeature.EvaluationContext{})
	if err != nil {
		return false
	}
	return v
}
