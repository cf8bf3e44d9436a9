package branch

import (
	"context"

	"github.com/imranmit2020/open-dental-helper-sub002/id"
)

// Store defines persistence operations for the branch directory.
type Store interface {
	// ListBranches returns every branch in the directory.
	ListBranches(ctx context.Context) ([]*Branch, error)

	// GetBranch retrieves a branch by ID.
	GetBranch(ctx context.Context, branchID id.BranchID) (*Branch, error)

	// CreateBranch persists a new branch.
	CreateBranch(ctx context.Context, b *Branch) error

	// UpdateBranch persists changes to a branch.
	UpdateBranch(ctx context.Context, b *Branch) error

	// DeleteBranch removes a branch by ID.
	DeleteBranch(ctx context.Context, branchID id.BranchID) error
}
