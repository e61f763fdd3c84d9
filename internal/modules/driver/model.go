// README: Driver profile, verification documents and the static document-to-column table.
package driver

import (
	"time"

	"ridebook/internal/types"
)

type DocumentType string

const (
	DocGovernmentID   DocumentType = "government_id"
	DocSelfie         DocumentType = "selfie"
	DocDrivingLicense DocumentType = "driving_license"
	DocCarRC          DocumentType = "car_rc"
	DocNumberPlate    DocumentType = "number_plate"
	DocCarPhotos      DocumentType = "car_photos"
)

// DocumentTypes lists every required document in display order.
var DocumentTypes = []DocumentType{
	DocGovernmentID, DocSelfie, DocDrivingLicense, DocCarRC, DocNumberPlate, DocCarPhotos,
}

// documentColumn maps a document type onto driver_profiles. Column names only
// ever come from this table.
type documentColumn struct {
	path       string
	uploadedAt string
	multi      bool
}

var documentColumns = map[DocumentType]documentColumn{
	DocGovernmentID:   {path: "government_id_path", uploadedAt: "government_id_uploaded_at"},
	DocSelfie:         {path: "selfie_path", uploadedAt: "selfie_uploaded_at"},
	DocDrivingLicense: {path: "driving_license_path", uploadedAt: "driving_license_uploaded_at"},
	DocCarRC:          {path: "car_rc_path", uploadedAt: "car_rc_uploaded_at"},
	DocNumberPlate:    {path: "number_plate_path", uploadedAt: "number_plate_uploaded_at"},
	DocCarPhotos:      {path: "car_photos_paths", uploadedAt: "car_photos_uploaded_at", multi: true},
}

// ParseDocumentType accepts only the known types.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if _, ok := documentColumns[t]; !ok {
		return "", ErrUnknownDocument
	}
	return t, nil
}

// Document is one uploaded document; car photos may hold several paths.
type Document struct {
	Paths      []string   `json:"paths"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

type Profile struct {
	UserID            types.ID                  `json:"user_id"`
	Email             string                    `json:"email"`
	Phone             string                    `json:"phone"`
	Gender            string                    `json:"gender"`
	Documents         map[DocumentType]Document `json:"documents"`
	DocumentsComplete bool                      `json:"documents_complete"`
	ProfileVerified   bool                      `json:"profile_verified"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// BookableDriver is a verified driver as a passenger sees it when booking.
type BookableDriver struct {
	UserID        types.ID  `json:"user_id"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	IsAvailable   bool      `json:"is_available"`
	CurrentRideID *types.ID `json:"current_ride_id,omitempty"`
}

// UploadTicket is a signed PUT URL the client uploads the file to, then
// reports Path back through RecordDocument.
type UploadTicket struct {
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expires_at"`
}

const maxDocumentBytes = 10 << 20

var allowedContentTypes = map[string]string{
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/png":       "png",
	"application/pdf": "pdf",
}
