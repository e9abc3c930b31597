package cmd

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/internal/display"
	"go.pilab.hu/citizenportal/pages"
)

var (
	disputeViolation string
	disputeReason    string
	disputeDetails   string
	disputeEvidence  string
)

var disputesCmd = &cobra.Command{
	Use:     "disputes",
	Aliases: []string{"dispute"},
	Short:   "File and track violation disputes",
}

func disputeRows(w io.Writer, data any) {
	ds := data.([]domain.Dispute)
	if len(ds) == 0 {
		row(w, "no disputes")
		return
	}
	row(w, "ID", "VIOLATION", "TYPE", "PLATE", "REASON", "STATUS", "SUBMITTED")
	for _, d := range ds {
		row(w, d.ID, d.ViolationID, d.ViolationType, d.PlateNumber, d.Reason, d.Status, display.FormatDate(d.SubmittedAt))
	}
}

// readAttachment returns the base64 content of path, or "" for no path.
func readAttachment(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

var disputesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List disputes and the violations that can still be disputed",
	RunE: func(cmd *cobra.Command, args []string) error {
		page := pages.NewDisputes(app.client, app.sessions, routeUser, app.pageOptions()...)
		defer page.Close()

		v := page.SetFilter(cmd.Context(), currentFilter())
		return printView(cmd, v, true,
			section{"Disputes", pages.ResDisputes, disputeRows},
			section{"Eligible violations", pages.ResEligible, violationRows},
		)
	},
}

var disputesSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Dispute a violation",
	RunE: func(cmd *cobra.Command, args []string) error {
		evidence, err := readAttachment(disputeEvidence)
		if err != nil {
			return err
		}

		page := pages.NewDisputes(app.client, app.sessions, routeUser, app.pageOptions()...)
		defer page.Close()

		res, err := page.Submit(cmd.Context(), domain.DisputeRequest{
			ViolationID: domain.ID(disputeViolation),
			Reason:      disputeReason,
			Description: disputeDetails,
			Evidence:    evidence,
		})
		if err != nil {
			return err
		}

		msg := res.Message
		if msg == "" {
			msg = "Dispute submitted successfully"
		}
		return printResult(cmd, msg, map[string]string{"dispute_id": res.DisputeID.String()})
	},
}

func init() {
	rootCmd.AddCommand(disputesCmd)
	disputesCmd.AddCommand(disputesListCmd, disputesSubmitCmd)
	addFilterFlags(disputesListCmd)

	f := disputesSubmitCmd.Flags()
	f.StringVar(&disputeViolation, "violation-id", "", "violation to dispute")
	f.StringVar(&disputeReason, "reason", "", "reason for the dispute")
	f.StringVar(&disputeDetails, "description", "", "why the violation is disputed")
	f.StringVar(&disputeEvidence, "evidence", "", "optional evidence file to attach")
}
