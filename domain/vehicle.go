package domain

// Vehicle is a vehicle registered to the citizen.
type Vehicle struct {
	ID               ID     `json:"id"`
	PlateNumber      string `json:"plate_number"`
	Make             string `json:"make,omitempty"`
	Model            string `json:"model"`
	Year             int    `json:"year,omitempty"`
	Color            string `json:"color,omitempty"`
	RegistrationDate string `json:"registration_date,omitempty"`
	Status           string `json:"status,omitempty"`
}

// DocumentType names a tracked vehicle document.
type DocumentType string

const (
	DocumentRC        DocumentType = "rc"
	DocumentInsurance DocumentType = "insurance"
	DocumentPUC       DocumentType = "puc"
	DocumentLicense   DocumentType = "license"
)

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentRC, DocumentInsurance, DocumentPUC, DocumentLicense:
		return true
	}
	return false
}

// DocumentStatus is the server-side expiry classification.
type DocumentStatus string

const (
	DocumentValid        DocumentStatus = "valid"
	DocumentExpiringSoon DocumentStatus = "expiring_soon"
	DocumentExpired      DocumentStatus = "expired"
)

// Document is a vehicle document with its expiry classification.
type Document struct {
	ID              ID             `json:"id"`
	VehicleID       ID             `json:"vehicle_id"`
	PlateNumber     string         `json:"plate_number,omitempty"`
	DocumentType    DocumentType   `json:"document_type"`
	DocumentNumber  string         `json:"document_number"`
	IssueDate       string         `json:"issue_date,omitempty"`
	ExpiryDate      string         `json:"expiry_date"`
	Status          DocumentStatus `json:"status"`
	DaysUntilExpiry int            `json:"days_until_expiry"`
}

// DocumentUpload is the payload of a document upload. File holds the
// base64-encoded file content.
type DocumentUpload struct {
	VehicleID      ID           `json:"vehicle_id"`
	DocumentType   DocumentType `json:"document_type"`
	DocumentNumber string       `json:"document_number"`
	IssueDate      string       `json:"issue_date,omitempty"`
	ExpiryDate     string       `json:"expiry_date"`
	FileName       string       `json:"file_name,omitempty"`
	File           string       `json:"file"`
}
