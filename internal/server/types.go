// Package server provides the HTTP server for the framegrab extraction service.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateJobRequest is the HTTP request body for creating a new extraction job.
// Zero values fall back to the server-wide defaults from config.
type CreateJobRequest struct {
	// VideoBase64 is the base64-encoded source video.
	VideoBase64 string `json:"video_base64" validate:"required,base64"`
	// NumFrames is the number of frames to extract; 0 selects automatic mode.
	NumFrames int `json:"num_frames" validate:"min=0"`
	// Width is the canvas width.
	Width int `json:"width,omitempty" validate:"omitempty,min=1,max=16384"`
	// Height is the canvas height.
	Height int `json:"height,omitempty" validate:"omitempty,min=1,max=16384"`
	// Quality is the lossy encoder quality (0-100).
	Quality *int `json:"quality,omitempty" validate:"omitempty,min=0,max=100"`
	// Format is the output image format.
	Format string `json:"format,omitempty" validate:"omitempty,oneof=jpg jpeg png webp"`
	// TargetFPS is the sampling rate used in automatic mode.
	TargetFPS float64 `json:"target_fps,omitempty" validate:"gte=0"`
	// OnError is the per-frame failure policy.
	OnError string `json:"on_error,omitempty" validate:"omitempty,oneof=skip abort"`
	// PushToS3 indicates whether to upload the frames to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	// Done is the number of processed samples.
	Done        int    `json:"done"`
	Error       string `json:"error,omitempty"`
	TotalFrames int    `json:"total_frames,omitempty"`
	Planned     int    `json:"planned,omitempty"`
	Failed      int    `json:"failed,omitempty"`
	// Frames are the written frame names, served by GET /jobs/{id}/frames/{name}.
	Frames []string `json:"frames,omitempty"`
	// URLs are the S3 URLs of the frames (if push_to_s3=true and completed).
	URLs      []string  `json:"urls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobListResponse is the HTTP response for listing jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
