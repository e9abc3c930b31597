package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/internal/display"
	"go.pilab.hu/citizenportal/pages"
)

var paymentsCmd = &cobra.Command{
	Use:     "payments",
	Aliases: []string{"payment"},
	Short:   "Review payment history and pay pending fines",
}

func pendingRows(w io.Writer, data any) {
	p := data.(*domain.PendingFines)
	row(w, "Balance:", display.FormatAmount(p.AccountBalance))
	row(w, "Pending total:", display.FormatAmount(p.TotalAmount))
	if len(p.Violations) > 0 {
		violationRows(w, p.Violations)
	}
}

func newPaymentsPage() *pages.Payments {
	return pages.NewPayments(app.client, app.sessions, routeUser, app.pageOptions()...)
}

var paymentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List payment history",
	RunE: func(cmd *cobra.Command, args []string) error {
		page := newPaymentsPage()
		defer page.Close()

		v := page.SetFilter(cmd.Context(), currentFilter())
		return printView(cmd, v, true, section{"Payment history", pages.ResHistory, paymentRows})
	},
}

var paymentsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending fines",
	RunE: func(cmd *cobra.Command, args []string) error {
		page := newPaymentsPage()
		defer page.Close()

		return printView(cmd, page.Load(cmd.Context()), false, section{"Pending fines", pages.ResPending, pendingRows})
	},
}

var paymentsPayCmd = &cobra.Command{
	Use:   "pay <violation-id>",
	Short: "Pay one pending fine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page := newPaymentsPage()
		defer page.Close()

		receipt, err := page.Pay(cmd.Context(), domain.ID(args[0]))
		if err != nil {
			return err
		}
		return printReceipt(cmd, receipt)
	},
}

var paymentsBulkPayCmd = &cobra.Command{
	Use:   "bulk-pay <violation-id>...",
	Short: "Pay several pending fines at once",
	RunE: func(cmd *cobra.Command, args []string) error {
		page := newPaymentsPage()
		defer page.Close()

		receipt, err := page.BulkPay(cmd.Context(), domain.IDs(args...))
		if err != nil {
			return err
		}

		failed := make([]string, 0, len(receipt.Failed))
		for _, id := range receipt.Failed {
			failed = append(failed, id.String())
		}
		msg := receipt.Message
		if msg == "" {
			msg = "Bulk payment processed"
		}
		return printResult(cmd, msg, map[string]string{
			"paid_count":  fmt.Sprint(receipt.PaidCount),
			"total_paid":  display.FormatAmount(receipt.TotalPaid),
			"new_balance": display.FormatAmount(receipt.NewBalance),
			"failed":      strings.Join(failed, ", "),
		})
	},
}

var paymentsRetryCmd = &cobra.Command{
	Use:   "retry <payment-id>",
	Short: "Retry a failed payment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page := newPaymentsPage()
		defer page.Close()

		receipt, err := page.Retry(cmd.Context(), domain.ID(args[0]))
		if err != nil {
			return err
		}
		return printReceipt(cmd, receipt)
	},
}

func init() {
	rootCmd.AddCommand(paymentsCmd)
	paymentsCmd.AddCommand(paymentsListCmd, paymentsPendingCmd, paymentsPayCmd, paymentsBulkPayCmd, paymentsRetryCmd)
	addFilterFlags(paymentsListCmd)
}
