package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/organizations"

	"github.com/wolfeidau/orgflow/internal/migrate"
	"github.com/wolfeidau/orgflow/internal/orgtree"
)

type MigrateCmd struct {
	Plan    PlanMoveCmd   `cmd:"" help:"Show what an account move would do"`
	Run     RunMoveCmd    `cmd:"" help:"Move an account to another OU"`
	Aft     AftMigrateCmd `cmd:"" help:"Record an existing account migration in the ledger"`
	ListOus ListOUsCmd    `cmd:"" name:"list-ous" help:"List organizational units"`
}

// newOrchestrator wires the directory client, resolver and ledger for the
// migrate subcommands.
func newOrchestrator(ctx context.Context, globals *Globals) (*migrate.Orchestrator, error) {
	awsConfig, err := globals.AWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ledger, err := globals.RequestStore(ctx)
	if err != nil {
		return nil, err
	}

	directory := organizations.NewFromConfig(awsConfig)
	return migrate.NewOrchestrator(directory, orgtree.NewResolver(directory), ledger), nil
}

type PlanMoveCmd struct {
	Account  string `arg:"" help:"Account id or name"`
	TargetOU string `arg:"" help:"Target organizational unit name"`
}

func (c *PlanMoveCmd) Run(ctx context.Context, globals *Globals) error {
	orchestrator, err := newOrchestrator(ctx, globals)
	if err != nil {
		return err
	}

	plan, err := orchestrator.PlanMove(ctx, c.Account, c.TargetOU)
	if errors.Is(err, migrate.ErrAlreadyInTargetOU) {
		printPlan(plan)
		fmt.Println("\nAccount is already in the target OU, nothing to do.")
		return nil
	}
	if err != nil {
		return err
	}

	printPlan(plan)
	fmt.Println("\nDry run only, no changes made.")
	return nil
}

type RunMoveCmd struct {
	Account  string `arg:"" help:"Account id or name"`
	TargetOU string `arg:"" help:"Target organizational unit name"`
	Yes      bool   `help:"Skip the confirmation prompt" default:"false"`
}

func (c *RunMoveCmd) Run(ctx context.Context, globals *Globals) error {
	orchestrator, err := newOrchestrator(ctx, globals)
	if err != nil {
		return err
	}

	plan, err := orchestrator.PlanMove(ctx, c.Account, c.TargetOU)
	if errors.Is(err, migrate.ErrAlreadyInTargetOU) {
		printPlan(plan)
		fmt.Println("\nAccount is already in the target OU, nothing to do.")
		return nil
	}
	if err != nil {
		return err
	}

	printPlan(plan)

	if !c.Yes && !confirm(fmt.Sprintf("\nMove account %s to %s?", plan.AccountID, plan.TargetOUName)) {
		fmt.Println("Aborted.")
		return nil
	}

	if err := orchestrator.ExecuteMove(ctx, plan); err != nil {
		return err
	}

	fmt.Printf("Moved account %s to %s (%s)\n", plan.AccountID, plan.TargetOUName, plan.TargetParentID)
	return nil
}

type AftMigrateCmd struct {
	Account     string `arg:"" help:"Account id or name"`
	TargetOU    string `arg:"" help:"Target organizational unit name"`
	ClientID    string `help:"Client the account belongs to" required:""`
	RequestedBy string `help:"Who is requesting the migration" required:""`
	DryRun      bool   `help:"Preview the provisioning document without writing to the ledger" default:"false"`
}

func (c *AftMigrateCmd) Run(ctx context.Context, globals *Globals) error {
	orchestrator, err := newOrchestrator(ctx, globals)
	if err != nil {
		return err
	}

	in := migrate.MigrationInput{
		Source:      c.Account,
		ClientID:    c.ClientID,
		RequestedBy: c.RequestedBy,
		TargetOU:    c.TargetOU,
	}

	if c.DryRun {
		plan, err := orchestrator.PlanMove(ctx, c.Account, c.TargetOU)
		if err != nil && !errors.Is(err, migrate.ErrAlreadyInTargetOU) {
			return err
		}

		preview := migrate.PreviewRequest(in, plan)
		spec, err := migrate.ProvisioningSpec(preview)
		if err != nil {
			return err
		}

		fmt.Println("Dry run, provisioning document:")
		fmt.Println()
		fmt.Print(string(spec))
		return nil
	}

	req, err := orchestrator.CreateMigrationRequest(ctx, in)
	if err != nil {
		return err
	}

	spec, err := migrate.ProvisioningSpec(req)
	if err != nil {
		return err
	}

	printRequest(req)
	fmt.Println("\nProvisioning document:")
	fmt.Println()
	fmt.Print(string(spec))
	return nil
}

type ListOUsCmd struct{}

func (c *ListOUsCmd) Run(ctx context.Context, globals *Globals) error {
	awsConfig, err := globals.AWSConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	resolver := orgtree.NewResolver(organizations.NewFromConfig(awsConfig))

	rootID, err := resolver.RootID(ctx)
	if err != nil {
		return err
	}

	nodes, err := resolver.ListAll(ctx, rootID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (root)\n", rootID)
	for _, node := range nodes {
		fmt.Printf("%s%s (%s)\n", strings.Repeat("  ", node.Depth+1), node.Name, node.ID)
	}

	return nil
}

func printPlan(plan *migrate.MovePlan) {
	fmt.Printf("Account:    %s (%s)\n", plan.AccountName, plan.AccountID)
	fmt.Printf("Email:      %s\n", plan.AccountEmail)
	fmt.Printf("Current OU: %s\n", plan.SourceParentID)
	fmt.Printf("Target OU:  %s (%s)\n", plan.TargetOUName, plan.TargetParentID)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
