package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/chatrelay/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// CheckLint runs golangci-lint with the repository config and fails on
// any finding.
//
// +check
func (c *Chatrelay) CheckLint(ctx context.Context) (string, error) {
	out, err := c.lintContainer().
		WithExec([]string{"golangci-lint", "run", "--config", ".golangci.yml", "./..."}).
		Stdout(ctx)
	return checkResult("golangci-lint found issues", out, err)
}

// FixLint runs golangci-lint --fix and returns the rewritten source.
func (c *Chatrelay) FixLint(ctx context.Context) *dagger.Directory {
	return c.lintContainer().
		WithExec([]string{"golangci-lint", "run", "--fix", "--config", ".golangci.yml", "./..."},
			dagger.ContainerWithExecOpts{Expect: dagger.ReturnTypeAny}).
		Directory("/src")
}

// CheckGoModTidy fails when go.mod or go.sum would change under
// "go mod tidy".
//
// +check
func (c *Chatrelay) CheckGoModTidy(ctx context.Context) (string, error) {
	out, err := c.goContainer().
		WithExec([]string{"go", "mod", "tidy", "-diff"}).
		Stdout(ctx)
	return checkResult("go.mod or go.sum are not tidy: run 'go mod tidy' and commit the changes", out, err)
}

// lintContainer layers golangci-lint on goContainer so cgo and the sqlite
// headers match the test environment.
func (c *Chatrelay) lintContainer() *dagger.Container {
	return c.goContainer().
		WithExec([]string{
			"go", "install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})
}

// checkResult turns a failed exec into a readable error carrying its output.
func checkResult(failure, out string, err error) (string, error) {
	var e *dagger.ExecError
	if errors.As(err, &e) {
		return "", fmt.Errorf("%s\n\n%s%s", failure, e.Stdout, e.Stderr)
	} else if err != nil {
		return "", fmt.Errorf("unexpected error: %w", err)
	}
	return out, nil
}
