// Package id provides unique identifier generation for extraction jobs.
package id

import "github.com/google/uuid"

// Generate creates a new unique job ID.
// Format: job-<uuid v7>, so IDs sort by creation time.
// Example: job-01920d6e-8f3a-7c41-9b2d-5e6f7a8b9c0d
func Generate() string {
	u, err := uuid.NewV7()
	if err != nil {
		// Fall back to a random v4 UUID if the clock source fails
		u = uuid.New()
	}
	return "job-" + u.String()
}
