package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EntityKind names the entity types comments and attachments can hang off
type EntityKind string

const (
	EntityKindAccount     EntityKind = "account"
	EntityKindLead        EntityKind = "lead"
	EntityKindCase        EntityKind = "case"
	EntityKindOpportunity EntityKind = "opportunity"
	EntityKindTask        EntityKind = "task"
)

func (k EntityKind) IsValid() bool {
	switch k {
	case EntityKindAccount, EntityKindLead, EntityKindCase, EntityKindOpportunity, EntityKindTask:
		return true
	}
	return false
}

// EntityRef identifies the owner of a comment or attachment by kind and id
type EntityRef struct {
	Kind EntityKind `gorm:"type:varchar(20);not null;index" json:"kind" validate:"required"`
	ID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"id" validate:"required"`
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// Ref is a reference to another entity. It decodes from either a bare id
// ("0b3c...") or an embedded object ({"id": "0b3c...", ...}) and always
// encodes as the bare id.
type Ref struct {
	ID uuid.UUID
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		r.ID = uuid.Nil
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid reference id %q: %w", s, err)
		}
		r.ID = id
		return nil
	}

	var obj struct {
		ID *uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("reference must be an id or an object with an id: %w", err)
	}
	if obj.ID == nil {
		return fmt.Errorf("reference object is missing id")
	}
	r.ID = *obj.ID
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

// RefIDs flattens refs into ids, dropping empty ones and duplicates
func RefIDs(refs []Ref) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(refs))
	ids := make([]uuid.UUID, 0, len(refs))
	for _, r := range refs {
		if r.ID == uuid.Nil {
			continue
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}
	return ids
}

// OptionalRef is a Ref that remembers whether the field was present in the
// request body. An explicit null sets it with an empty id.
type OptionalRef struct {
	Set bool
	Ref
}

func (o *OptionalRef) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.Ref.UnmarshalJSON(data)
}

// Clears reports an explicit null
func (o OptionalRef) Clears() bool {
	return o.Set && o.ID == uuid.Nil
}
