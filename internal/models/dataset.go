package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// DatasetStatus tracks the moderation lifecycle of a submission.
type DatasetStatus string

const (
	StatusPending  DatasetStatus = "pending"
	StatusApproved DatasetStatus = "approved"
	StatusRejected DatasetStatus = "rejected"
)

// Specialties lists the medical specialties recognised by the catalog.
var Specialties = []string{
	"cardiology",
	"neurology",
	"oncology",
	"ophthalmology",
	"general",
	"pharmacology",
	"genetics",
	"pathology",
	"orthopedics",
	"pediatrics",
	"radiology",
	"surgery",
	"pulmonology",
	"infectious_disease",
	"dermatology",
	"endocrinology",
}

// KnownSpecialty reports whether the value is a recognised specialty id.
func KnownSpecialty(value string) bool {
	for _, s := range Specialties {
		if s == value {
			return true
		}
	}
	return false
}

// Dataset represents a catalog listing stored in the datasets table.
//
// ApprovedBy/ApprovedAt record the deciding moderator and decision time for
// both approvals and rejections; the names are kept for schema compatibility.
// Both are null while the submission is pending and always set together.
type Dataset struct {
	ID               string         `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	Abstract         string         `db:"abstract" json:"abstract"`
	DOI              *string        `db:"doi" json:"doi,omitempty"`
	Tags             pq.StringArray `db:"tags" json:"tags" swaggertype:"array,string"`
	Specialty        string         `db:"specialty" json:"specialty"`
	DatasetLink      string         `db:"dataset_link" json:"dataset_link"`
	CoverImageURL    *string        `db:"cover_image_url" json:"cover_image_url,omitempty"`
	SampleData       types.JSONText `db:"sample_data" json:"sample_data,omitempty" swaggertype:"object"`
	CaseSize         *string        `db:"case_size" json:"case_size,omitempty"`
	SubmittedBy      string         `db:"submitted_by" json:"submitted_by"`
	Status           DatasetStatus  `db:"status" json:"status"`
	ApprovedBy       *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	UpvotesCount     int            `db:"upvotes_count" json:"upvotes_count"`
	MonthlyDownloads int            `db:"monthly_downloads" json:"monthly_downloads"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// SubmitDatasetRequest is the payload for a new catalog submission.
type SubmitDatasetRequest struct {
	Title         string         `json:"title" validate:"required,min=5"`
	Abstract      string         `json:"abstract" validate:"required,min=50"`
	DOI           *string        `json:"doi,omitempty"`
	Tags          []string       `json:"tags"`
	Specialty     string         `json:"specialty" validate:"required"`
	DatasetLink   string         `json:"dataset_link" validate:"required,url"`
	CoverImageURL *string        `json:"cover_image_url,omitempty" validate:"omitempty,url"`
	SampleData    types.JSONText `json:"sample_data,omitempty" swaggertype:"object"`
	CaseSize      *string        `json:"case_size,omitempty"`
}

// DatasetDetail joins the submitter profile onto a dataset row.
type DatasetDetail struct {
	Dataset
	SubmitterName  *string `db:"submitter_name" json:"submitter_name,omitempty"`
	SubmitterEmail *string `db:"submitter_email" json:"submitter_email,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
