// Package resolver locates the ledger package that defines a named module.
//
// Package ids are opaque content hashes, so a client cannot know up front
// which package carries its templates - especially during development, when
// every model change produces a new id. The resolver scans the ledger's
// packages, decodes each payload's module table, and returns the id of the
// first package defining the target module.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/kesper43/volley/internal/archive"
	"github.com/kesper43/volley/pkg/ledger"
)

// PackageSource is the slice of the ledger interface resolution needs.
// Satisfied by *ledger.Client.
type PackageSource interface {
	ListPackages(ctx context.Context) ([]ledger.PackageID, error)
	GetPackage(ctx context.Context, packageID ledger.PackageID) ([]byte, error)
}

// ModuleNotFoundError indicates no package on the ledger defines the module.
// This is fatal for the caller: without the module there is no template to
// operate on.
type ModuleNotFoundError struct {
	Module []string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module %s is not available on the ledger", strings.Join(e.Module, "."))
}

// IsModuleNotFound checks if an error is a ModuleNotFoundError.
func IsModuleNotFound(err error) bool {
	_, ok := err.(*ModuleNotFoundError)
	return ok
}

// FindModule scans the ledger's packages in the order they are reported and
// returns the id of the first one defining a module whose decoded dotted name
// equals target element-wise. Enumeration stops at the first match; module
// names are expected to be unique ledger-wide, so this is a performance
// choice, not an exhaustiveness guarantee.
//
// Returns ModuleNotFoundError if no package matches. Fetch failures and
// malformed payloads fail the whole resolution - corruption anywhere is not
// locally recoverable and no partial result is produced.
func FindModule(ctx context.Context, src PackageSource, target []string) (ledger.PackageID, error) {
	if len(target) == 0 {
		return "", fmt.Errorf("target module name cannot be empty")
	}

	packageIDs, err := src.ListPackages(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list ledger packages: %w", err)
	}

	for _, packageID := range packageIDs {
		payload, err := src.GetPackage(ctx, packageID)
		if err != nil {
			return "", fmt.Errorf("failed to fetch package %s: %w", packageID, err)
		}

		ok, err := containsModule(payload, target)
		if err != nil {
			return "", fmt.Errorf("package %s: %w", packageID, err)
		}
		if ok {
			return packageID, nil
		}
	}

	return "", &ModuleNotFoundError{Module: target}
}

// containsModule decodes one package payload and checks its module table for
// the target dotted name.
func containsModule(payload []byte, target []string) (bool, error) {
	a, err := archive.Decode(payload)
	if err != nil {
		return false, err
	}

	moduleNames, err := a.ModuleNames()
	if err != nil {
		return false, err
	}

	for _, name := range moduleNames {
		if equalName(name, target) {
			return true, nil
		}
	}
	return false, nil
}

func equalName(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
