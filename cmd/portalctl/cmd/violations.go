package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/internal/display"
	"go.pilab.hu/citizenportal/pagedata"
	"go.pilab.hu/citizenportal/pages"
)

var violationsCmd = &cobra.Command{
	Use:     "violations",
	Aliases: []string{"violation"},
	Short:   "Review and pay traffic violations",
}

func summaryRows(w io.Writer, data any) {
	s := data.(*domain.ViolationSummary)
	row(w, "Total:", s.Total)
	row(w, "Pending:", s.Pending, display.FormatAmount(s.TotalPendingAmount))
	row(w, "Paid:", s.Paid)
	row(w, "Disputed:", s.Disputed)
}

func showViolations(cmd *cobra.Command, v pagedata.View) error {
	return printView(cmd, v, true,
		section{"Summary", pages.ResSummary, summaryRows},
		section{"Violations", pages.ResViolations, violationRows},
	)
}

var violationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List violations",
	RunE: func(cmd *cobra.Command, args []string) error {
		page := pages.NewViolations(app.client, app.sessions, routeUser, app.pageOptions()...)
		defer page.Close()

		return showViolations(cmd, page.SetFilter(cmd.Context(), currentFilter()))
	},
}

var violationsPayCmd = &cobra.Command{
	Use:   "pay <violation-id>",
	Short: "Pay a violation from the account balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page := pages.NewViolations(app.client, app.sessions, routeUser, app.pageOptions()...)
		defer page.Close()

		receipt, err := page.Pay(cmd.Context(), domain.ID(args[0]))
		if err != nil {
			return err
		}
		return printReceipt(cmd, receipt)
	},
}

func printReceipt(cmd *cobra.Command, r *domain.PaymentReceipt) error {
	msg := r.Message
	if msg == "" {
		msg = "Payment successful"
	}
	return printResult(cmd, msg, map[string]string{
		"payment_id":     r.PaymentID.String(),
		"transaction_id": r.TransactionID,
		"amount_paid":    display.FormatAmount(r.AmountPaid),
		"new_balance":    display.FormatAmount(r.NewBalance),
	})
}

func init() {
	rootCmd.AddCommand(violationsCmd)
	violationsCmd.AddCommand(violationsListCmd)
	violationsCmd.AddCommand(violationsPayCmd)
	addFilterFlags(violationsListCmd)
}
