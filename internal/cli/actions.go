package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ninjaos/autopilot/internal/approval"
	"github.com/ninjaos/autopilot/internal/config"
	"github.com/ninjaos/autopilot/internal/store"
)

var (
	actionsStatus string
	actionsLimit  int
	actionsBy     string
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Review and decide proposed agent actions",
}

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List actions, newest first",
	RunE:  runActionsList,
}

var actionsApproveCmd = &cobra.Command{
	Use:   "approve <action-id>",
	Short: "Approve a proposed action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideAction(args[0], true)
	},
}

var actionsRejectCmd = &cobra.Command{
	Use:   "reject <action-id>",
	Short: "Reject a proposed action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideAction(args[0], false)
	},
}

func init() {
	actionsListCmd.Flags().StringVar(&actionsStatus, "status", "", "Filter by status (proposed, approved, rejected, executed, failed)")
	actionsListCmd.Flags().IntVar(&actionsLimit, "limit", 20, "Maximum rows")
	actionsApproveCmd.Flags().StringVar(&actionsBy, "by", "cli", "Approver identity recorded on the action")
	actionsRejectCmd.Flags().StringVar(&actionsBy, "by", "cli", "Approver identity recorded on the action")
	actionsCmd.AddCommand(actionsListCmd, actionsApproveCmd, actionsRejectCmd)
}

func openStore() (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.New(cfg.Paths.DBPath)
}

func runActionsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	actions, err := st.ListActions(actionsStatus, actionsLimit)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		fmt.Println("No actions.")
		return nil
	}
	for _, a := range actions {
		status := a.Status
		switch a.Status {
		case store.ActionProposed:
			status = color.YellowString(status)
		case store.ActionExecuted, store.ActionApproved:
			status = color.GreenString(status)
		case store.ActionRejected, store.ActionFailed:
			status = color.RedString(status)
		}
		fmt.Printf("%s  %-10s %-14s risk=%-6s %s -> %s\n",
			a.ActionID, status, a.ActionType, a.RiskLevel, a.AgentName, a.TargetID)
		if a.ProposedContent != "" {
			fmt.Printf("    %s\n", a.ProposedContent)
		}
	}
	return nil
}

func decideAction(actionID string, approve bool) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	mgr := approval.NewManager(st, 0)
	if approve {
		if err := mgr.Approve(actionID, actionsBy); err != nil {
			return err
		}
		fmt.Println(color.GreenString("Approved ") + actionID)
		return nil
	}
	if err := mgr.Reject(actionID, actionsBy); err != nil {
		return err
	}
	fmt.Println(color.RedString("Rejected ") + actionID)
	return nil
}
