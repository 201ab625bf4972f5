package orgtree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
)

// Sentinel errors for common error conditions
var (
	ErrOUNotFound         = errors.New("organizational unit not found")
	ErrNoRoots            = errors.New("organization has no roots")
	ErrMalformedHierarchy = errors.New("malformed organization hierarchy")
)

// DefaultMaxDepth bounds tree traversal. AWS Organizations allows five
// levels of OU nesting under a root, so anything deeper indicates a
// backend returning a graph rather than a tree.
const DefaultMaxDepth = 10

// DirectoryAPI is the subset of the Organizations client consumed by the
// resolver and the migration orchestrator
type DirectoryAPI interface {
	DescribeAccount(ctx context.Context, params *organizations.DescribeAccountInput, optFns ...func(*organizations.Options)) (*organizations.DescribeAccountOutput, error)
	ListParents(ctx context.Context, params *organizations.ListParentsInput, optFns ...func(*organizations.Options)) (*organizations.ListParentsOutput, error)
	ListRoots(ctx context.Context, params *organizations.ListRootsInput, optFns ...func(*organizations.Options)) (*organizations.ListRootsOutput, error)
	ListOrganizationalUnitsForParent(ctx context.Context, params *organizations.ListOrganizationalUnitsForParentInput, optFns ...func(*organizations.Options)) (*organizations.ListOrganizationalUnitsForParentOutput, error)
	ListAccounts(ctx context.Context, params *organizations.ListAccountsInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error)
	MoveAccount(ctx context.Context, params *organizations.MoveAccountInput, optFns ...func(*organizations.Options)) (*organizations.MoveAccountOutput, error)
}

// OUNode is a read-through view of an organizational unit. Depth is zero
// for OUs directly under the root.
type OUNode struct {
	ID       string
	Name     string
	ParentID string
	Depth    int
}

// Resolver resolves OU names against the organization tree.
//
// Name uniqueness is not guaranteed by the backend. Resolution is a
// depth-first pre-order traversal comparing names case-insensitively, and
// the first match in traversal order wins; callers needing a specific node
// among duplicates must disambiguate by id, not name.
type Resolver struct {
	client DirectoryAPI

	// MaxDepth is the deepest OU level the traversal will descend to.
	// Exceeding it fails with ErrMalformedHierarchy.
	MaxDepth int
}

// NewResolver creates a resolver over the given directory client
func NewResolver(client DirectoryAPI) *Resolver {
	return &Resolver{
		client:   client,
		MaxDepth: DefaultMaxDepth,
	}
}

// RootID returns the id of the organization's first root.
func (r *Resolver) RootID(ctx context.Context) (string, error) {
	resp, err := r.client.ListRoots(ctx, &organizations.ListRootsInput{})
	if err != nil {
		return "", fmt.Errorf("failed to list roots: %w", err)
	}
	if len(resp.Roots) == 0 {
		return "", ErrNoRoots
	}
	return aws.ToString(resp.Roots[0].Id), nil
}

// Resolve returns the id of the first OU named name, in pre-order
// traversal of the tree rooted at rootID. Returns ErrOUNotFound when no OU
// matches.
func (r *Resolver) Resolve(ctx context.Context, name, rootID string) (string, error) {
	var found string
	err := r.walk(ctx, rootID, func(node OUNode) bool {
		if strings.EqualFold(node.Name, name) {
			found = node.ID
			return true
		}
		return false
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("%w: %q", ErrOUNotFound, name)
	}
	return found, nil
}

// ListAll returns every OU under rootID in pre-order traversal order,
// annotated with its depth. The traversal holds no state between calls.
func (r *Resolver) ListAll(ctx context.Context, rootID string) ([]OUNode, error) {
	var nodes []OUNode
	err := r.walk(ctx, rootID, func(node OUNode) bool {
		nodes = append(nodes, node)
		return false
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// walk drives a depth-first pre-order traversal using an explicit stack.
// Each node's paginated child listing is consumed exhaustively before any
// child is descended into, so sibling order follows the backend's paging
// order. visit returning true stops the traversal early.
func (r *Resolver) walk(ctx context.Context, rootID string, visit func(OUNode) bool) error {
	children, err := r.listChildren(ctx, rootID, 0)
	if err != nil {
		return err
	}

	stack := make([]OUNode, 0, len(children))
	pushReversed(&stack, children)

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visit(node) {
			return nil
		}

		children, err := r.listChildren(ctx, node.ID, node.Depth+1)
		if err != nil {
			return err
		}
		if len(children) > 0 && node.Depth+1 > r.MaxDepth {
			return fmt.Errorf("%w: OU nesting exceeds depth %d under %s", ErrMalformedHierarchy, r.MaxDepth, node.ID)
		}
		pushReversed(&stack, children)
	}

	return nil
}

// pushReversed pushes children so the leftmost sibling is popped first
func pushReversed(stack *[]OUNode, children []OUNode) {
	for i := len(children) - 1; i >= 0; i-- {
		*stack = append(*stack, children[i])
	}
}

// listChildren consumes the paginated child listing for one parent
func (r *Resolver) listChildren(ctx context.Context, parentID string, depth int) ([]OUNode, error) {
	var children []OUNode
	var nextToken *string

	for {
		resp, err := r.client.ListOrganizationalUnitsForParent(ctx, &organizations.ListOrganizationalUnitsForParentInput{
			ParentId:  aws.String(parentID),
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list OUs for parent %s: %w", parentID, err)
		}

		for _, ou := range resp.OrganizationalUnits {
			children = append(children, OUNode{
				ID:       aws.ToString(ou.Id),
				Name:     aws.ToString(ou.Name),
				ParentID: parentID,
				Depth:    depth,
			})
		}

		if resp.NextToken == nil {
			break
		}
		nextToken = resp.NextToken
	}

	return children, nil
}
