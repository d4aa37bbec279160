// Package services contains business logic.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emadnahed/flakeid/internal/idgen"
)

// MaxBatchSize bounds a single Generate call.
const MaxBatchSize = 1000

// ErrInvalidCount is returned when Generate is asked for too few or too many IDs.
var ErrInvalidCount = fmt.Errorf("count must be between 1 and %d", MaxBatchSize)

// IDInfo is the decoded form of an ID.
type IDInfo struct {
	ID        idgen.ID  `json:"id"`
	Timestamp int64     `json:"timestamp"`
	Time      time.Time `json:"time"`
	NodeID    uint16    `json:"node_id"`
	Sequence  uint16    `json:"sequence"`
	Base62    string    `json:"base62"`
	Binary    string    `json:"binary"`
}

// Layout describes how IDs are packed.
type Layout struct {
	TimestampBits int       `json:"timestamp_bits"`
	NodeIDBits    int       `json:"node_id_bits"`
	SequenceBits  int       `json:"sequence_bits"`
	Epoch         int64     `json:"epoch"`
	EpochTime     time.Time `json:"epoch_time"`
	MaxNodeID     int       `json:"max_node_id"`
	MaxSequence   int       `json:"max_sequence"`
}

// GeneratorInfo describes the running generator together with a freshly
// minted sample ID.
type GeneratorInfo struct {
	Sample      IDInfo      `json:"sample"`
	NodeID      uint16      `json:"node_id"`
	Layout      Layout      `json:"layout"`
	Stats       idgen.Stats `json:"stats"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// IDService defines ID generation and inspection operations.
type IDService interface {
	Generate(ctx context.Context, count int) ([]idgen.ID, error)
	Inspect(id string) (*IDInfo, error)
	Info(ctx context.Context) (*GeneratorInfo, error)
}

// IDServiceImpl implements IDService.
type IDServiceImpl struct {
	generator idgen.ContextGenerator
	nodeID    uint16
	now       func() time.Time
}

var _ IDService = (*IDServiceImpl)(nil)

// NewIDService creates a new IDService.
func NewIDService(gen idgen.ContextGenerator, nodeID uint16) *IDServiceImpl {
	return &IDServiceImpl{
		generator: gen,
		nodeID:    nodeID,
		now:       time.Now,
	}
}

// Generate mints count IDs in order. Either all IDs are returned or none.
func (s *IDServiceImpl) Generate(ctx context.Context, count int) ([]idgen.ID, error) {
	if count < 1 || count > MaxBatchSize {
		return nil, ErrInvalidCount
	}

	ids := make([]idgen.ID, 0, count)
	for i := 0; i < count; i++ {
		id, err := s.generator.NextIDContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Inspect decodes a decimal ID string.
func (s *IDServiceImpl) Inspect(raw string) (*IDInfo, error) {
	id, err := idgen.ParseID(raw)
	if err != nil {
		return nil, err
	}
	info := Describe(id)
	return &info, nil
}

// Info mints a sample ID and describes the generator.
func (s *IDServiceImpl) Info(ctx context.Context) (*GeneratorInfo, error) {
	id, err := s.generator.NextIDContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sample ID: %w", err)
	}

	info := &GeneratorInfo{
		Sample:      Describe(id),
		NodeID:      s.nodeID,
		Layout:      CurrentLayout(),
		GeneratedAt: s.now().UTC(),
	}
	if sp, ok := s.generator.(idgen.StatsProvider); ok {
		info.Stats = sp.Stats()
	}
	return info, nil
}

// Describe decodes every field of id.
func Describe(id idgen.ID) IDInfo {
	return IDInfo{
		ID:        id,
		Timestamp: id.Timestamp(),
		Time:      id.Time(),
		NodeID:    id.NodeID(),
		Sequence:  id.Sequence(),
		Base62:    id.Base62(),
		Binary:    id.Binary(),
	}
}

// CurrentLayout returns the bit layout in use.
func CurrentLayout() Layout {
	return Layout{
		TimestampBits: idgen.TimestampBits,
		NodeIDBits:    idgen.NodeBits,
		SequenceBits:  idgen.SequenceBits,
		Epoch:         idgen.Epoch,
		EpochTime:     time.UnixMilli(idgen.Epoch).UTC(),
		MaxNodeID:     idgen.MaxNodeID,
		MaxSequence:   idgen.MaxSequence,
	}
}

// IsGenerationUnavailable reports whether err means the generator cannot mint
// IDs right now, as opposed to a caller mistake.
func IsGenerationUnavailable(err error) bool {
	return errors.Is(err, idgen.ErrClockMovedBackwards) ||
		errors.Is(err, idgen.ErrMaxRetriesExceeded) ||
		errors.Is(err, idgen.ErrTimestampOutOfRange)
}
