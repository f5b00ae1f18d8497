package vector

import (
	"context"
	"fmt"
	"math"

	"github.com/triagehq/triage/errors"
)

// ErrDimensionMismatch is returned when a record's vector does not match the
// store's configured dimension. Callers must fail fast instead of retrying.
var ErrDimensionMismatch = fmt.Errorf("vector: embedding dimension mismatch: %w", errors.ErrConfiguration)

// Record is a (chunk id, embedding, metadata) triple held by a Store.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Match pairs a stored record with its similarity to a query vector.
type Match struct {
	Record *Record
	Score  float32
}

// Store holds vector records and answers nearest-neighbor queries.
// Implementations are safe for concurrent reads; ingestion is a separate
// batch process and must not run concurrently with reads against the same
// collection.
type Store interface {
	// Add inserts a record. Returns ErrDimensionMismatch when the record's
	// vector length differs from Dimension().
	Add(ctx context.Context, rec *Record) error

	// Search returns the topK most similar records by cosine similarity,
	// highest first. A non-empty filter restricts candidates to records
	// whose metadata contains every filter pair.
	Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]Match, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error

	// Get retrieves a specific record by ID.
	Get(ctx context.Context, id string) (*Record, error)

	// Clear removes all records.
	Clear(ctx context.Context) error

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)

	// Dimension returns the fixed embedding dimension of this store.
	Dimension() int
}

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	// Embed converts text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to embeddings.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the number of embedding dimensions.
	Dimension() int
}

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB)))
}

// Normalize scales the vector to unit length (L2 norm).
func Normalize(vec []float32) []float32 {
	if len(vec) == 0 {
		return vec
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		ID:     r.ID,
		Vector: append([]float32(nil), r.Vector...),
		Text:   r.Text,
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
