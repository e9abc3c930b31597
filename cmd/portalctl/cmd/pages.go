package cmd

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/internal/display"
	"go.pilab.hu/citizenportal/pages"
)

var (
	searchFlag string
	statusFlag string
)

func addFilterFlags(c *cobra.Command) {
	c.Flags().StringVar(&searchFlag, "search", "", "case-insensitive search text")
	c.Flags().StringVar(&statusFlag, "status", domain.StatusAll, "status filter")
}

func currentFilter() domain.FilterState {
	return domain.FilterState{Search: searchFlag, Status: statusFlag}
}

func violationRows(w io.Writer, data any) {
	row(w, "ID", "TYPE", "LOCATION", "PLATE", "AMOUNT", "STATUS", "DATE", "DUE")
	for _, v := range data.([]domain.Violation) {
		row(w, v.ID, v.Type, v.Location, v.PlateNumber, display.FormatAmount(v.TotalAmount), v.Status,
			display.FormatDate(v.ViolationDate), display.FormatDate(v.DueDate))
	}
}

func vehicleRows(w io.Writer, data any) {
	row(w, "ID", "PLATE", "MAKE", "MODEL", "YEAR", "STATUS")
	for _, v := range data.([]domain.Vehicle) {
		row(w, v.ID, v.PlateNumber, v.Make, v.Model, v.Year, v.Status)
	}
}

func paymentRows(w io.Writer, data any) {
	row(w, "ID", "VIOLATION", "AMOUNT", "METHOD", "STATUS", "TRANSACTION", "DATE")
	for _, p := range data.([]domain.Payment) {
		row(w, p.ID, p.ViolationID, display.FormatAmount(p.Amount), p.Method, p.Status, p.TransactionID,
			display.FormatDate(p.PaymentDate))
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the citizen dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		page := pages.NewDashboard(app.client, app.sessions, routeUser, app.pageOptions()...)
		defer page.Close()

		v := page.Load(cmd.Context())
		return printView(cmd, v, false,
			section{"Summary", pages.ResStats, func(w io.Writer, data any) {
				st := data.(*domain.Stats)
				row(w, "Violations:", st.TotalViolations, "pending", st.PendingViolations, "paid", st.PaidViolations)
				row(w, "Fines:", display.FormatAmount(st.TotalFines), "pending", display.FormatAmount(st.PendingFines),
					"paid", display.FormatAmount(st.PaidFines))
				row(w, "Paid share:", display.Percent(st.PaidFines, st.TotalFines), "%")
				row(w, "Vehicles:", st.TotalVehicles, "active disputes", st.ActiveDisputes)
				row(w, "Balance:", display.FormatAmount(st.AccountBalance))
			}},
			section{"Profile", pages.ResProfile, func(w io.Writer, data any) {
				p := data.(*domain.Profile)
				row(w, "Name:", p.Name)
				row(w, "Mobile:", p.MobileNumber)
				row(w, "Email:", p.Email)
				row(w, "Licence:", p.DLNumber)
				row(w, "Face login:", p.HasFaceData)
			}},
			section{"Recent violations", pages.ResViolations, violationRows},
			section{"Vehicles", pages.ResVehicles, vehicleRows},
			section{"Recent payments", pages.ResPayments, paymentRows},
		)
	},
}

var vehiclesCmd = &cobra.Command{
	Use:     "vehicles",
	Aliases: []string{"vehicle"},
	Short:   "Manage registered vehicles",
}

var vehiclesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vehicles and their documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		page := pages.NewVehicles(app.client, app.sessions, routeUser, app.pageOptions()...)
		defer page.Close()

		return printView(cmd, page.Load(cmd.Context()), false, vehicleSections...)
	},
}

var vehicleSections = []section{
	{"Vehicles", pages.ResVehicles, vehicleRows},
	{"Documents", pages.ResDocuments, func(w io.Writer, data any) {
		row(w, "ID", "PLATE", "TYPE", "NUMBER", "EXPIRES", "STATUS", "DAYS LEFT", "VALIDITY")
		for _, d := range data.([]domain.Document) {
			row(w, d.ID, d.PlateNumber, d.DocumentType, d.DocumentNumber, display.FormatDate(d.ExpiryDate), d.Status,
				d.DaysUntilExpiry, display.DocumentProgress(d.ExpiryDate, time.Now()))
		}
	}},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(vehiclesCmd)
	vehiclesCmd.AddCommand(vehiclesListCmd)
}
