package repository

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/nimburion/endpointstore/pkg/store"
)

// EntityMapper defines how to map between entities and store records
type EntityMapper[T any, ID comparable] interface {
	// IDProperty is the record field holding the identity.
	IDProperty() string
	// ToRecord converts an entity into a record.
	ToRecord(entity *T) (store.Record, error)
	// FromRecord decodes a record into a new entity.
	FromRecord(record store.Record) (*T, error)
	// GetID extracts the ID from an entity
	GetID(entity *T) ID
	// SetID sets the ID on an entity
	SetID(entity *T, id ID)
}

// StructMapper maps structs to records through their json tags. Decoding is
// weakly typed so that JSON numbers land in integer fields.
type StructMapper[T any, ID comparable] struct {
	idProperty string
}

var _ EntityMapper[struct{}, string] = (*StructMapper[struct{}, string])(nil)

// NewStructMapper creates a mapper whose identity lives in idProperty.
func NewStructMapper[T any, ID comparable](idProperty string) *StructMapper[T, ID] {
	if idProperty == "" {
		idProperty = "id"
	}
	return &StructMapper[T, ID]{idProperty: idProperty}
}

// IDProperty returns the identity field.
func (m *StructMapper[T, ID]) IDProperty() string { return m.idProperty }

// ToRecord encodes entity into a record.
func (m *StructMapper[T, ID]) ToRecord(entity *T) (store.Record, error) {
	if entity == nil {
		return nil, fmt.Errorf("entity cannot be nil")
	}
	out := map[string]any{}
	if err := decode(entity, &out); err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	return store.Record(out), nil
}

// FromRecord decodes record into a new entity.
func (m *StructMapper[T, ID]) FromRecord(record store.Record) (*T, error) {
	entity := new(T)
	if err := decode(map[string]any(record), entity); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return entity, nil
}

// GetID returns the identity of entity, or the zero ID when it has none.
func (m *StructMapper[T, ID]) GetID(entity *T) ID {
	var id ID
	record, err := m.ToRecord(entity)
	if err != nil || record[m.idProperty] == nil {
		return id
	}
	_ = decode(record[m.idProperty], &id)
	return id
}

// SetID writes id into the identity field of entity.
func (m *StructMapper[T, ID]) SetID(entity *T, id ID) {
	_ = decode(map[string]any{m.idProperty: id}, entity)
}

func decode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
