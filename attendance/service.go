package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/facevec"
)

// DefaultThreshold is the largest squared L2 distance accepted as the same face.
const DefaultThreshold float32 = 0.6

// EmbeddingProducer turns an image into one embedding per detected face.
type EmbeddingProducer interface {
	ProduceEmbeddings(ctx context.Context, image []byte) ([][]float32, error)
}

// EmbeddingProducerFunc adapts a function to EmbeddingProducer.
type EmbeddingProducerFunc func(ctx context.Context, image []byte) ([][]float32, error)

// ProduceEmbeddings implements EmbeddingProducer.
func (f EmbeddingProducerFunc) ProduceEmbeddings(ctx context.Context, image []byte) ([][]float32, error) {
	return f(ctx, image)
}

// Index is the part of *facevec.Index the service needs.
type Index interface {
	Replace(ctx context.Context, user facevec.UserID, embedding []float32) (uint32, int, error)
	Search(ctx context.Context, query []float32, k int) ([]facevec.Match, error)
}

var _ Index = (*facevec.Index)(nil)

// Registration is the outcome of a successful Register.
type Registration struct {
	UserID   facevec.UserID `json:"user_id"`
	Position uint32         `json:"position"`
	Replaced int            `json:"replaced"`
}

// Verification is the outcome of a successful Verify.
type Verification struct {
	UserID     facevec.UserID `json:"user_id"`
	Distance   float32        `json:"distance"`
	Similarity float32        `json:"similarity"`
	VerifiedAt time.Time      `json:"verified_at"`
}

// Option configures a Service.
type Option func(*Service)

// WithThreshold sets the acceptance distance. Non-positive values are ignored.
func WithThreshold(threshold float32) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.threshold = threshold
		}
	}
}

// WithLogger sets the logger. Pass nil to disable logging.
func WithLogger(logger *facevec.Logger) Option {
	return func(s *Service) {
		if logger == nil {
			logger = facevec.NoopLogger()
		}
		s.logger = logger
	}
}

// Service runs face registration and attendance verification against an index.
type Service struct {
	index     Index
	producer  EmbeddingProducer
	threshold float32
	logger    *facevec.Logger
	now       func() time.Time
}

// NewService returns a Service over index using producer to read images.
func NewService(index Index, producer EmbeddingProducer, optFns ...Option) *Service {
	s := &Service{
		index:     index,
		producer:  producer,
		threshold: DefaultThreshold,
		logger:    facevec.NoopLogger(),
		now:       time.Now,
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Threshold returns the acceptance distance.
func (s *Service) Threshold() float32 {
	return s.threshold
}

// Register replaces the stored face of user with the single face in image.
//
// A *facevec.PersistenceError means the new embedding is active in memory but
// was not saved.
func (s *Service) Register(ctx context.Context, user facevec.UserID, image []byte) (*Registration, error) {
	embedding, err := s.singleFace(ctx, image)
	if err != nil {
		return nil, err
	}

	pos, replaced, err := s.index.Replace(ctx, user, embedding)
	if err != nil {
		return nil, fmt.Errorf("attendance: register user %d: %w", user, err)
	}

	s.logger.WithUser(user).InfoContext(ctx, "face registered", "position", pos, "replaced", replaced)

	return &Registration{UserID: user, Position: pos, Replaced: replaced}, nil
}

// Verify checks that the single face in image is user's registered face.
func (s *Service) Verify(ctx context.Context, user facevec.UserID, image []byte) (*Verification, error) {
	embedding, err := s.singleFace(ctx, image)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.Search(ctx, embedding, 1)
	if err != nil {
		return nil, fmt.Errorf("attendance: verify user %d: %w", user, err)
	}
	if len(matches) == 0 {
		return nil, ErrNotRecognized
	}

	best := matches[0]
	log := s.logger.WithUser(user)

	if best.UserID != user {
		log.WarnContext(ctx, "face matched a different user",
			"matched_user_id", int64(best.UserID), "distance", best.Distance)
		return nil, &VerificationError{
			Err:       ErrIdentityMismatch,
			Matched:   int64(best.UserID),
			Distance:  best.Distance,
			Threshold: s.threshold,
		}
	}
	if best.Distance >= s.threshold {
		log.InfoContext(ctx, "face verification failed", "distance", best.Distance, "threshold", s.threshold)
		return nil, &VerificationError{
			Err:       ErrDistanceTooLarge,
			Matched:   int64(best.UserID),
			Distance:  best.Distance,
			Threshold: s.threshold,
		}
	}

	log.InfoContext(ctx, "face verified", "distance", best.Distance)

	return &Verification{
		UserID:     user,
		Distance:   best.Distance,
		Similarity: max(0, 1-best.Distance),
		VerifiedAt: s.now(),
	}, nil
}

func (s *Service) singleFace(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	embeddings, err := s.producer.ProduceEmbeddings(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("attendance: produce embeddings: %w", err)
	}

	switch len(embeddings) {
	case 0:
		return nil, ErrNoFace
	case 1:
		return embeddings[0], nil
	default:
		return nil, ErrMultipleFaces
	}
}
