package repository

import (
	"errors"
	"fmt"
)

// ErrVersionConflict matches every *VersionConflictError.
var ErrVersionConflict = errors.New("record version conflict")

// Versioned is implemented by entities whose records carry a version counter.
// StoreRepository.Update refuses to overwrite a record whose stored version
// differs from the entity's.
type Versioned interface {
	GetVersion() int64
	SetVersion(version int64)
}

// VersionConflictError reports an update made from a stale copy of a record.
type VersionConflictError struct {
	ID     any
	Sent   int64
	Stored int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("record %v was updated concurrently: sent version %d, collection holds %d",
		e.ID, e.Sent, e.Stored)
}

// Is reports ErrVersionConflict.
func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// claimNextVersion checks entity against the stored copy and bumps its
// version. The returned func restores the previous version when the write
// does not go through. Unversioned entities pass with a no-op restore.
func claimNextVersion(id, entity, stored any) (restore func(), err error) {
	versioned, ok := entity.(Versioned)
	if !ok {
		return func() {}, nil
	}
	sent := versioned.GetVersion()
	if current, ok := stored.(Versioned); ok && current.GetVersion() != sent {
		return nil, &VersionConflictError{ID: id, Sent: sent, Stored: current.GetVersion()}
	}
	versioned.SetVersion(sent + 1)
	return func() { versioned.SetVersion(sent) }, nil
}
