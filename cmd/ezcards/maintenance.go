package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Refresh the status of every unpaid bill once",
		Long: `Move bills past their closing date to closed and past their due date
to overdue, assessing late fee and interest on newly overdue bills.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at, _ := cmd.Flags().GetString("at")
			now := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = parsed
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.svc.Bills.RefreshStatuses(cmd.Context(), now)
			if result != nil {
				if writeErr := writeJSON(cmd.OutOrStdout(), result); writeErr != nil {
					return writeErr
				}
			}
			return err
		},
	}
	cmd.Flags().String("at", "", "evaluate statuses at this RFC 3339 time instead of now")
	return cmd
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <user-id>",
		Short: "Print the card summary of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.svc.Cards.GetCardSummary(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <card-id>...",
		Short: "Compare stored card and bill amounts with their purchases and payments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repair, _ := cmd.Flags().GetBool("repair")

			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid card id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			drifted := 0
			for _, id := range ids {
				check := a.svc.Reconcile.GenerateReconciliationReport
				if repair {
					check = a.svc.Reconcile.Reconcile
				}
				report, err := check(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !report.InSync() {
					drifted++
				}
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			}

			if drifted > 0 && !repair {
				return fmt.Errorf("%d card(s) out of sync; rerun with --repair", drifted)
			}
			return nil
		},
	}
	cmd.Flags().Bool("repair", false, "recalculate drifted limits and bills")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
