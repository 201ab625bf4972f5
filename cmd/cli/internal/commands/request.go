package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfeidau/orgflow/internal/store"
)

type RequestCmd struct {
	Create CreateRequestCmd `cmd:"" help:"Create a new account request"`
	Get    GetRequestCmd    `cmd:"" help:"Show one account request"`
	List   ListRequestsCmd  `cmd:"" help:"List account requests"`
	Update UpdateRequestCmd `cmd:"" help:"Update an account request"`
	Delete DeleteRequestCmd `cmd:"" help:"Delete an account request"`
}

type CreateRequestCmd struct {
	Template    string            `help:"Account template" default:"client"`
	Email       string            `help:"Root email for the new account" required:""`
	Name        string            `help:"Account name" required:""`
	ClientID    string            `help:"Client the account belongs to" required:""`
	RequestedBy string            `help:"Who is requesting the account" required:""`
	TargetOU    string            `help:"Target organizational unit name" required:""`
	Custom      map[string]string `help:"Customization key=value pairs"`
}

func (c *CreateRequestCmd) Run(ctx context.Context, globals *Globals) error {
	ledger, err := globals.RequestStore(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	req := &store.AccountRequest{
		RequestID:      fmt.Sprintf("req-%s-%s", now.Format("2006-01-02"), uuid.NewString()[:8]),
		Template:       c.Template,
		Email:          c.Email,
		Name:           c.Name,
		ClientID:       c.ClientID,
		RequestedBy:    c.RequestedBy,
		TargetOU:       c.TargetOU,
		Customizations: c.Custom,
		Status:         store.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := ledger.Put(ctx, req); err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	printRequest(req)
	return nil
}

type GetRequestCmd struct {
	RequestID string `arg:"" help:"Request id"`
}

func (c *GetRequestCmd) Run(ctx context.Context, globals *Globals) error {
	ledger, err := globals.RequestStore(ctx)
	if err != nil {
		return err
	}

	req, err := ledger.Get(ctx, c.RequestID)
	if err != nil {
		return err
	}

	printRequest(req)
	return nil
}

type ListRequestsCmd struct {
	ClientID string `help:"Filter by client" default:""`
	Status   string `help:"Filter by status (pending, in_progress, completed, failed)" default:"" enum:",pending,in_progress,completed,failed"`
	Limit    int    `help:"Maximum number of requests" default:"20"`
}

func (c *ListRequestsCmd) Run(ctx context.Context, globals *Globals) error {
	ledger, err := globals.RequestStore(ctx)
	if err != nil {
		return err
	}

	requests, err := ledger.List(ctx, store.ListRequestsOptions{
		ClientID: c.ClientID,
		Status:   store.RequestStatus(c.Status),
		Limit:    c.Limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list requests: %w", err)
	}

	if len(requests) == 0 {
		fmt.Println("No requests found.")
		return nil
	}

	fmt.Printf("%-32s %-12s %-12s %-24s %-20s\n",
		"Request ID", "Client", "Status", "Target OU", "Created At")
	fmt.Println(strings.Repeat("─", 104))

	for _, req := range requests {
		fmt.Printf("%-32s %-12s %-12s %-24s %-20s\n",
			req.RequestID,
			req.ClientID,
			req.Status,
			req.TargetOU,
			req.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Printf("\nTotal requests: %d\n", len(requests))
	return nil
}

type UpdateRequestCmd struct {
	RequestID    string `arg:"" help:"Request id"`
	Status       string `help:"New status (pending, in_progress, completed, failed)" default:"" enum:",pending,in_progress,completed,failed"`
	AccountID    string `help:"Provisioned account id" default:""`
	ErrorMessage string `help:"Failure detail" default:""`
}

func (c *UpdateRequestCmd) Run(ctx context.Context, globals *Globals) error {
	ledger, err := globals.RequestStore(ctx)
	if err != nil {
		return err
	}

	update := store.RequestUpdate{}
	if c.Status != "" {
		status := store.RequestStatus(c.Status)
		update.Status = &status
	}
	if c.AccountID != "" {
		update.AccountID = &c.AccountID
	}
	if c.ErrorMessage != "" {
		update.ErrorMessage = &c.ErrorMessage
	}

	req, err := ledger.Update(ctx, c.RequestID, update)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}

	printRequest(req)
	return nil
}

type DeleteRequestCmd struct {
	RequestID string `arg:"" help:"Request id"`
}

func (c *DeleteRequestCmd) Run(ctx context.Context, globals *Globals) error {
	ledger, err := globals.RequestStore(ctx)
	if err != nil {
		return err
	}

	if err := ledger.Delete(ctx, c.RequestID); err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}

	fmt.Printf("Deleted request %s\n", c.RequestID)
	return nil
}
