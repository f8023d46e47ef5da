// Package store persists games, rules, audit history and diagnostics with gorm.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound reports that the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrInUse reports that a row cannot be deleted while other rows reference it.
	ErrInUse = errors.New("store: row is still referenced")
	// ErrInvalidInput reports missing or malformed input fields.
	ErrInvalidInput = errors.New("store: invalid input")
)

// DanglingRuleReferenceError lists rule ids that no longer exist when history is written.
type DanglingRuleReferenceError struct {
	Missing []uint64
}

func (e *DanglingRuleReferenceError) Error() string {
	if e == nil || len(e.Missing) == 0 {
		return "store: dangling rule reference"
	}
	ids := make([]string, 0, len(e.Missing))
	for _, id := range e.Missing {
		ids = append(ids, strconv.FormatUint(id, 10))
	}
	return fmt.Sprintf("store: missing rule ids: %s", strings.Join(ids, ", "))
}

// GormStore implements the rule store on top of a gorm connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying connection for health checks.
func (s *GormStore) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *GormStore) ready() error {
	if s == nil || s.db == nil {
		return errors.New("store: db not initialized")
	}
	return nil
}

// notFound maps gorm's record-not-found error onto ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

// uniqueIDs returns the distinct non-zero ids in ascending order.
func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
