package pages

import (
	"context"
	"strings"
	"time"

	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/pagedata"
)

const dateLayout = "2006-01-02"

// Vehicles shows the registered vehicles and their documents.
type Vehicles struct {
	*pagedata.Controller
	api API
}

// NewVehicles creates the vehicles controller.
func NewVehicles(api API, sessions pagedata.SessionReader, routeUserID string, opts ...pagedata.Option) *Vehicles {
	spec := pagedata.PageSpec{
		Name:   PageVehicles,
		Policy: pagedata.PromoteFailures,
		Resources: []pagedata.ResourceSpec{
			{Name: ResVehicles, Fetch: unfiltered(api.Vehicles)},
			{Name: ResDocuments, Fetch: unfiltered(api.Documents)},
		},
	}
	return &Vehicles{Controller: pagedata.New(spec, sessions, routeUserID, opts...), api: api}
}

// ValidateUpload checks a document upload before it is sent.
func ValidateUpload(req domain.DocumentUpload) error {
	if req.VehicleID.IsZero() {
		return perrors.NewValidation("vehicle_id", "Select a vehicle")
	}
	if !req.DocumentType.Valid() {
		return perrors.NewValidation("document_type", "Select a document type")
	}
	if strings.TrimSpace(req.DocumentNumber) == "" {
		return perrors.NewValidation("document_number", "Document number is required")
	}
	if _, err := time.Parse(dateLayout, req.ExpiryDate); err != nil {
		return perrors.NewValidation("expiry_date", "Expiry date must be a date (YYYY-MM-DD)")
	}
	if req.IssueDate != "" {
		if _, err := time.Parse(dateLayout, req.IssueDate); err != nil {
			return perrors.NewValidation("issue_date", "Issue date must be a date (YYYY-MM-DD)")
		}
	}
	if req.File == "" {
		return perrors.NewValidation("file", "Attach the document file")
	}
	return nil
}

// UploadDocument uploads a document and reloads documents and vehicles.
func (p *Vehicles) UploadDocument(ctx context.Context, req domain.DocumentUpload) error {
	if err := ValidateUpload(req); err != nil {
		return err
	}
	req.DocumentNumber = strings.TrimSpace(req.DocumentNumber)

	_, err := p.Mutate(ctx, ActionUploadDocument, func(ctx context.Context, userID string) (any, error) {
		return nil, p.api.UploadDocument(ctx, userID, req)
	}, ResDocuments, ResVehicles)
	return err
}
