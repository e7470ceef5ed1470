package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"retail-backoffice/internal/core"
	"retail-backoffice/internal/db"
)

func newTrialBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trial-balance <scope-kind> <scope-id>",
		Short: "Print the trial balance for a branch or warehouse",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := core.ParseScopeKind(args[0])
			if err != nil {
				return err
			}
			scopeID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid scope id %q", args[1])
			}
			scope := core.Scope{Kind: kind, ID: scopeID}

			pool, err := db.NewPool(cmd.Context(), os.Getenv("DATABASE_URL"))
			if err != nil {
				return err
			}
			defer pool.Close()

			tb, err := core.NewReportingService(pool).TrialBalance(cmd.Context(), scope)
			if err != nil {
				return err
			}

			fmt.Printf("Trial balance for %s\n", scope)
			fmt.Printf("%-28s %8s %14s %14s %14s\n", "ACCOUNT", "KIND", "DEBITS", "CREDITS", "BALANCE")
			for _, l := range tb.Lines {
				fmt.Printf("%-28s %8s %14s %14s %14s\n",
					l.Name, l.Kind, l.Debits.StringFixed(2), l.Credits.StringFixed(2), l.Balance.StringFixed(2))
			}
			fmt.Printf("%-28s %8s %14s %14s\n", "TOTAL", "",
				tb.TotalDebits.StringFixed(2), tb.TotalCredits.StringFixed(2))
			if !tb.InBalance {
				fmt.Println("WARNING: ledger out of balance")
			}
			return nil
		},
	}
}
