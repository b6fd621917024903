// internal/app/system/limits/limits.go
package limits

// Request body size limits.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody is the maximum size for JSON request bodies.
	MaxJSONBody = 1 << 20 // 1 MB

	// MaxSubmissionUpload is the in-memory budget handed to
	// ParseMultipartForm for assignment submissions; larger uploads
	// spill to temp files.
	MaxSubmissionUpload = 32 << 20 // 32 MB

	// MaxSubmissionFiles caps the number of attachments on one submit.
	MaxSubmissionFiles = 10
)
