package model

import "time"

type Resource struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty"`
	OrganizationID string    `json:"organization_id" bson:"organization_id"`
	Name           string    `json:"name" bson:"name"`
	Capacity       int       `json:"capacity" bson:"capacity"`
	IsActive       bool      `json:"is_active" bson:"is_active"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// VisibilityEntry offers a resource to one organization on one calendar date.
// Date uses the DateLayout format in the booking time zone.
type VisibilityEntry struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty"`
	ResourceID     string    `json:"resource_id" bson:"resource_id"`
	OrganizationID string    `json:"organization_id" bson:"organization_id"`
	Date           string    `json:"date" bson:"date"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

const DateLayout = "2006-01-02"

type VisibilityReplaceRequest struct {
	ResourceIDs []string `json:"resource_ids" validate:"omitempty,max=500,dive,required,mongodb"`
}
