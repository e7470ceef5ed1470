package commands

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"retail-backoffice/internal/adapters/web"
	"retail-backoffice/internal/app"
	"retail-backoffice/internal/core"
	"retail-backoffice/internal/db"
	"retail-backoffice/internal/logger"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.WithComponent("serve")
			ctx := cmd.Context()

			pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
			if err != nil {
				return err
			}
			defer pool.Close()

			ledger := core.NewLedgerService(pool)
			sequencer := core.NewInvoiceSequencer()
			balances := core.NewBalanceTracker(pool)
			costs := core.NewInventoryCostProvider()
			sales := core.NewSaleService(pool, sequencer, ledger, balances, costs)
			allocator := core.NewPaymentAllocator(pool, ledger)
			reports := core.NewReportingService(pool)

			svc := app.NewAppService(sales, ledger, allocator, reports)
			handler := web.NewHandler(svc, os.Getenv("ALLOWED_ORIGINS"))

			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = "8080"
			}

			log.Info().Str("port", port).Msg("server starting")
			return http.ListenAndServe(":"+port, handler)
		},
	}
}
