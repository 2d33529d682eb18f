package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Bundle holds a compiled admission policy and its identity.
type Bundle interface {
	ID() string // e.g., SHA of the bundle content
}

// PreparedBundle is a Bundle backed by a prepared Rego query.
type PreparedBundle struct {
	BundleID      string
	PreparedQuery rego.PreparedEvalQuery
}

var _ Bundle = (*PreparedBundle)(nil)

// ID implements Bundle.
func (b *PreparedBundle) ID() string {
	return b.BundleID
}

// Provider retrieves Bundles.
type Provider interface {
	// GetBundle fetches the current policy bundle. Implementations handle
	// caching. Should return ErrPolicyLoad on failure.
	GetBundle(ctx context.Context) (Bundle, error)
}

// FileProvider implements Provider for policy files on disk.
type FileProvider struct {
	PolicyPath string
	Query      string // e.g., "data.drawbridge.response"
	// caches the loaded bundle to avoid reloading/recompiling every time
	cachedBundle Bundle
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider creates a new file-based policy provider.
func NewFileProvider(policyPath, query string) *FileProvider {
	return &FileProvider{
		PolicyPath: policyPath,
		Query:      query,
	}
}

// GetBundle implements Provider.
func (p *FileProvider) GetBundle(ctx context.Context) (Bundle, error) {
	if p.cachedBundle != nil {
		return p.cachedBundle, nil
	}

	policyBytes, err := os.ReadFile(p.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading policy file %s: %v", ErrPolicyLoad, p.PolicyPath, err)
	}

	moduleName := filepath.Base(p.PolicyPath)
	compiler, err := ast.CompileModules(map[string]string{
		moduleName: string(policyBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: compiling policy module %s: %v", ErrPolicyLoad, moduleName, err)
	}

	r := rego.New(
		rego.Query(p.Query),
		rego.Compiler(compiler),
	)

	pq, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: preparing policy query '%s': %v", ErrPolicyLoad, p.Query, err)
	}

	// SHA256 of the policy file for versioning and audit records.
	hash := sha256.Sum256(policyBytes)
	bundleID := hex.EncodeToString(hash[:])

	bundle := &PreparedBundle{
		BundleID:      bundleID,
		PreparedQuery: pq,
	}
	p.cachedBundle = bundle

	return bundle, nil
}
