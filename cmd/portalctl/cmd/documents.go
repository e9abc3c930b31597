package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/pages"
)

var upload struct {
	vehicleID string
	docType   string
	number    string
	issued    string
	expires   string
	file      string
}

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Track vehicle documents and their expiry",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vehicle documents",
	RunE:  vehiclesListCmd.RunE,
}

var documentsUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a vehicle document",
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readAttachment(upload.file)
		if err != nil {
			return err
		}
		req := domain.DocumentUpload{
			VehicleID:      domain.ID(upload.vehicleID),
			DocumentType:   domain.DocumentType(upload.docType),
			DocumentNumber: upload.number,
			IssueDate:      upload.issued,
			ExpiryDate:     upload.expires,
			File:           content,
		}
		if upload.file != "" {
			req.FileName = filepath.Base(upload.file)
		}

		page := pages.NewVehicles(app.client, app.sessions, routeUser, app.pageOptions()...)
		defer page.Close()

		if err := page.UploadDocument(cmd.Context(), req); err != nil {
			return err
		}
		return printView(cmd, page.View(), false, vehicleSections[1])
	},
}

func init() {
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.AddCommand(documentsListCmd, documentsUploadCmd)

	f := documentsUploadCmd.Flags()
	f.StringVar(&upload.vehicleID, "vehicle-id", "", "vehicle the document belongs to")
	f.StringVar(&upload.docType, "type", "", "document type: rc, insurance, puc or license")
	f.StringVar(&upload.number, "number", "", "document number")
	f.StringVar(&upload.issued, "issue-date", "", "issue date (YYYY-MM-DD)")
	f.StringVar(&upload.expires, "expiry-date", "", "expiry date (YYYY-MM-DD)")
	f.StringVar(&upload.file, "file", "", "scanned document file")
}
