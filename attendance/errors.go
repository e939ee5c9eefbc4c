package attendance

import "errors"

var (
	// ErrEmptyImage is returned when no image bytes were supplied.
	ErrEmptyImage = errors.New("attendance: empty image")

	// ErrNoFace is returned when the producer found no face in the image.
	ErrNoFace = errors.New("attendance: no face detected")

	// ErrMultipleFaces is returned when the image shows more than one face.
	ErrMultipleFaces = errors.New("attendance: multiple faces detected")

	// ErrNotRecognized is returned when the index holds no embeddings.
	ErrNotRecognized = errors.New("attendance: face not recognized")

	// ErrIdentityMismatch is returned when the closest face belongs to another user.
	ErrIdentityMismatch = errors.New("attendance: face does not match registered profile")

	// ErrDistanceTooLarge is returned when the closest face is the user's own
	// but not within the acceptance threshold.
	ErrDistanceTooLarge = errors.New("attendance: match distance above threshold")
)

// VerificationError carries the nearest match of a rejected verification.
type VerificationError struct {
	Err       error
	Matched   int64
	Distance  float32
	Threshold float32
}

func (e *VerificationError) Error() string {
	return e.Err.Error()
}

func (e *VerificationError) Unwrap() error { return e.Err }
