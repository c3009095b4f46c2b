package repository

import (
	"errors"
	"testing"
)

type counter struct{ version int64 }

func (c *counter) GetVersion() int64        { return c.version }
func (c *counter) SetVersion(version int64) { c.version = version }

func TestVersionConflictError(t *testing.T) {
	err := error(&VersionConflictError{ID: "order-7", Sent: 2, Stored: 5})
	want := "record order-7 was updated concurrently: sent version 2, collection holds 5"
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatal("conflict must match ErrVersionConflict")
	}
	if errors.Is(errors.New("other"), ErrVersionConflict) {
		t.Fatal("unrelated error matched ErrVersionConflict")
	}
}

func TestClaimNextVersion(t *testing.T) {
	entity := &counter{version: 3}

	restore, err := claimNextVersion("a", entity, &counter{version: 3})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if entity.version != 4 {
		t.Fatalf("version = %d, want 4", entity.version)
	}
	restore()
	if entity.version != 3 {
		t.Fatalf("restored version = %d, want 3", entity.version)
	}

	if _, err := claimNextVersion("a", entity, &counter{version: 9}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
	if entity.version != 3 {
		t.Fatalf("version changed on conflict: %d", entity.version)
	}
}

func TestClaimNextVersion_Unversioned(t *testing.T) {
	restore, err := claimNextVersion(1, struct{}{}, struct{}{})
	if err != nil || restore == nil {
		t.Fatalf("claim = (restore nil: %t, %v)", restore == nil, err)
	}
	restore()
}
