package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/tools/go/packages"
)

// LoadPackages loads all Go packages from the given project path
func LoadPackages(ctx context.Context, projectPath string, logger *slog.Logger) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedSyntax |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedImports,
		Dir: projectPath,
	}

	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	// Some packages may still be usable when others fail to type-check
	var count int
	for _, pkg := range pkgs {
		for _, err := range pkg.Errors {
			count++
			logger.Warn("package error", "package", pkg.PkgPath, "err", err)
		}
	}
	if count > 0 {
		logger.Warn("package errors encountered", "count", count)
	}

	return pkgs, nil
}

// FilterMainPackages filters packages to only include those with source files
func FilterMainPackages(pkgs []*packages.Package) []*packages.Package {
	var result []*packages.Package
	for _, pkg := range pkgs {
		if len(pkg.Syntax) > 0 && pkg.TypesInfo != nil {
			result = append(result, pkg)
		}
	}
	return result
}
