package model

import "time"

// ResourceLock is an advisory lock serializing admission on one resource.
// Owner identifies the holder so a release never removes somebody else's lock.
type ResourceLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
