// Package document holds the identity document domain model. A document is
// owned exclusively by the uploading user; every read and mutation re-checks
// ownership.
package document

import "time"

// Type classifies an uploaded identity artifact.
type Type string

const (
	TypeIDFront       Type = "id_front"
	TypeIDBack        Type = "id_back"
	TypeSelfie        Type = "selfie"
	TypePassportPhoto Type = "passport_photo"
	TypeDriverLicense Type = "driver_license"
	TypeUtilityBill   Type = "utility_bill"
)

// KnownTypes is the accepted set for uploads.
var KnownTypes = map[Type]bool{
	TypeIDFront:       true,
	TypeIDBack:        true,
	TypeSelfie:        true,
	TypePassportPhoto: true,
	TypeDriverLicense: true,
	TypeUtilityBill:   true,
}

// VerificationStatus is the admin review state of a document.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Document is one uploaded identity artifact. Exactly one of StorageKey and
// InlineData is set: StorageKey points into the content store, InlineData
// carries the base64 payload for the inline backend.
type Document struct {
	ID                  string             `json:"id"`
	UserID              string             `json:"userId"`
	ActivationProfileID string             `json:"activationProfileId,omitempty"`
	DocumentType        Type               `json:"documentType"`
	OriginalFilename    string             `json:"originalFilename"`
	FileSize            int64              `json:"fileSize"`
	MimeType            string             `json:"mimeType"`
	Checksum            string             `json:"checksum,omitempty"`
	StorageKey          string             `json:"-"`
	InlineData          string             `json:"-"`
	VerificationStatus  VerificationStatus `json:"verificationStatus"`
	VerificationNotes   string             `json:"verificationNotes,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

// Inline reports whether the payload lives on the record itself.
func (d *Document) Inline() bool { return d.InlineData != "" }

// Clone returns a copy so stores never hand out aliased records.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}
