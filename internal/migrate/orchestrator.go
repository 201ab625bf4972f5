package migrate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgflow/internal/orgtree"
	"github.com/wolfeidau/orgflow/internal/store"
)

// Sentinel errors for common error conditions
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAlreadyInTargetOU = errors.New("account already in target OU")
	ErrMoveRejected      = errors.New("account move rejected")
)

var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

// MovePlan captures everything an account move needs, resolved up front so
// the execution step is a single backend call.
type MovePlan struct {
	AccountID      string
	AccountName    string
	AccountEmail   string
	SourceParentID string
	TargetParentID string
	TargetOUName   string
}

// MigrationInput describes a migration of an existing account into the
// account factory ledger.
type MigrationInput struct {
	// Source is a 12-digit account id or an account name.
	Source      string
	ClientID    string
	RequestedBy string
	TargetOU    string
}

// Orchestrator plans and executes account moves between OUs, and records
// migrations of existing accounts in the request ledger.
type Orchestrator struct {
	directory orgtree.DirectoryAPI
	resolver  *orgtree.Resolver
	ledger    store.RequestStore
}

// NewOrchestrator creates an orchestrator over the given directory client
// and ledger.
func NewOrchestrator(directory orgtree.DirectoryAPI, resolver *orgtree.Resolver, ledger store.RequestStore) *Orchestrator {
	return &Orchestrator{
		directory: directory,
		resolver:  resolver,
		ledger:    ledger,
	}
}

// PlanMove resolves the account, its current parent and the target OU, and
// returns the resulting plan without touching anything. When the account is
// already in the target OU the populated plan is returned together with
// ErrAlreadyInTargetOU so callers can still display it.
func (o *Orchestrator) PlanMove(ctx context.Context, source, targetOU string) (*MovePlan, error) {
	account, err := o.resolveAccount(ctx, source)
	if err != nil {
		return nil, err
	}

	accountID := aws.ToString(account.Id)

	parentID, err := o.currentParent(ctx, accountID)
	if err != nil {
		return nil, err
	}

	rootID, err := o.resolver.RootID(ctx)
	if err != nil {
		return nil, err
	}

	targetID, err := o.resolver.Resolve(ctx, targetOU, rootID)
	if err != nil {
		return nil, err
	}

	plan := &MovePlan{
		AccountID:      accountID,
		AccountName:    aws.ToString(account.Name),
		AccountEmail:   aws.ToString(account.Email),
		SourceParentID: parentID,
		TargetParentID: targetID,
		TargetOUName:   targetOU,
	}

	if parentID == targetID {
		return plan, fmt.Errorf("%w: %s is already under %s", ErrAlreadyInTargetOU, accountID, targetID)
	}

	return plan, nil
}

// ExecuteMove performs the planned move as a single MoveAccount call. There
// is no retry here; transient failures surface to the caller, who re-plans
// before trying again.
func (o *Orchestrator) ExecuteMove(ctx context.Context, plan *MovePlan) error {
	_, err := o.directory.MoveAccount(ctx, &organizations.MoveAccountInput{
		AccountId:           aws.String(plan.AccountID),
		SourceParentId:      aws.String(plan.SourceParentID),
		DestinationParentId: aws.String(plan.TargetParentID),
	})
	if err != nil {
		return wrapMoveError(err)
	}

	log.Info().
		Str("account_id", plan.AccountID).
		Str("source_parent_id", plan.SourceParentID).
		Str("target_parent_id", plan.TargetParentID).
		Msg("account moved")

	return nil
}

// CreateMigrationRequest records a migration of an existing account as a
// pending ledger entry, tagged so downstream automation can tell it apart
// from a fresh provisioning request.
func (o *Orchestrator) CreateMigrationRequest(ctx context.Context, in MigrationInput) (*store.AccountRequest, error) {
	account, err := o.resolveAccount(ctx, in.Source)
	if err != nil {
		return nil, err
	}

	req := newMigrationRequest(in, aws.ToString(account.Id), aws.ToString(account.Name), aws.ToString(account.Email))

	if err := o.ledger.Put(ctx, req); err != nil {
		return nil, err
	}

	log.Info().
		Str("request_id", req.RequestID).
		Str("account_id", req.AccountID).
		Str("target_ou", req.TargetOU).
		Msg("migration request created")

	return req, nil
}

// PreviewRequest builds the ledger entry a migration would create without
// writing it, for dry-run previews.
func PreviewRequest(in MigrationInput, plan *MovePlan) *store.AccountRequest {
	return newMigrationRequest(in, plan.AccountID, plan.AccountName, plan.AccountEmail)
}

func newMigrationRequest(in MigrationInput, accountID, name, email string) *store.AccountRequest {
	now := time.Now().UTC()
	return &store.AccountRequest{
		RequestID:   NewRequestID(now),
		Template:    "client",
		Email:       email,
		Name:        name,
		ClientID:    in.ClientID,
		RequestedBy: in.RequestedBy,
		TargetOU:    in.TargetOU,
		Customizations: map[string]string{
			"migration_source":    "existing_account",
			"original_account_id": accountID,
			"migration_type":      "ou_change",
		},
		Status:    store.StatusPending,
		AccountID: accountID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewRequestID returns a migration request id of the form
// migrate-YYYY-MM-DD-<uuid8>.
func NewRequestID(now time.Time) string {
	return fmt.Sprintf("migrate-%s-%s", now.Format("2006-01-02"), uuid.NewString()[:8])
}

// resolveAccount looks up an account by 12-digit id or by name. Name
// lookups page through the full account listing and return the first
// case-insensitive match.
func (o *Orchestrator) resolveAccount(ctx context.Context, source string) (*orgtypes.Account, error) {
	if accountIDPattern.MatchString(source) {
		resp, err := o.directory.DescribeAccount(ctx, &organizations.DescribeAccountInput{
			AccountId: aws.String(source),
		})
		if err != nil {
			var notFound *orgtypes.AccountNotFoundException
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, source)
			}
			return nil, fmt.Errorf("failed to describe account %s: %w", source, err)
		}
		return resp.Account, nil
	}

	var nextToken *string
	for {
		resp, err := o.directory.ListAccounts(ctx, &organizations.ListAccountsInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}

		for _, account := range resp.Accounts {
			if strings.EqualFold(aws.ToString(account.Name), source) {
				return &account, nil
			}
		}

		if resp.NextToken == nil {
			break
		}
		nextToken = resp.NextToken
	}

	return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, source)
}

// currentParent returns the account's first parent. Accounts always have
// exactly one parent in Organizations.
func (o *Orchestrator) currentParent(ctx context.Context, accountID string) (string, error) {
	resp, err := o.directory.ListParents(ctx, &organizations.ListParentsInput{
		ChildId: aws.String(accountID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list parents of %s: %w", accountID, err)
	}
	if len(resp.Parents) == 0 {
		return "", fmt.Errorf("%w: account %s has no parent", orgtree.ErrMalformedHierarchy, accountID)
	}
	return aws.ToString(resp.Parents[0].Id), nil
}

// wrapMoveError classifies backend denials so callers can distinguish a
// rejected move from a transport failure.
func wrapMoveError(err error) error {
	var constraint *orgtypes.ConstraintViolationException
	var denied *orgtypes.AccessDeniedException
	var notFound *orgtypes.AccountNotFoundException

	switch {
	case errors.As(err, &constraint), errors.As(err, &denied):
		return fmt.Errorf("%w: %s", ErrMoveRejected, err.Error())
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: %s", ErrAccountNotFound, err.Error())
	}

	return fmt.Errorf("failed to move account: %w", err)
}
