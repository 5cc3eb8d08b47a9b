package vector

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownIndexType is returned for index types other than memory and faiss.
var ErrUnknownIndexType = errors.New("unknown vector index type")

// IndexType names a VectorIndex implementation.
type IndexType string

const (
	// IndexTypeMemory is the exact in-process index; it serves catalogs of a few hundred
	// thousand products.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS is a FAISS IndexFlatL2, available with -tags=faiss and cgo.
	IndexTypeFAISS IndexType = "faiss"
)

// ParseIndexType normalizes a configured index type. Empty means memory.
func ParseIndexType(s string) (IndexType, error) {
	switch t := IndexType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return IndexTypeMemory, nil
	case IndexTypeMemory, IndexTypeFAISS:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q (supported: memory, faiss)", ErrUnknownIndexType, s)
}

// NewVectorIndex creates an empty index of the given type and dimension.
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	t, err := ParseIndexType(indexType)
	if err != nil {
		return nil, err
	}
	if t == IndexTypeFAISS {
		return NewFAISSIndex(dimensions)
	}
	return NewMemoryIndex(dimensions)
}

// IsFAISSAvailable reports whether FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
