package models

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NodeRefs maps a collection name to the uuids referenced in it.
type NodeRefs map[string][]string

// Contains reports whether id is listed under collection.
func (r NodeRefs) Contains(collection, id string) bool {
	return slices.Contains(r[collection], id)
}

// Add appends id under collection unless already present. It reports whether r changed.
func (r NodeRefs) Add(collection, id string) bool {
	if r.Contains(collection, id) {
		return false
	}
	r[collection] = append(r[collection], id)
	return true
}

// Remove filters id out of collection. It reports whether r changed.
// Empty lists are dropped so that detached nodes serialize to {}.
func (r NodeRefs) Remove(collection, id string) bool {
	ids, ok := r[collection]
	if !ok {
		return false
	}
	kept := slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
	if len(kept) == len(ids) {
		return false
	}
	if len(kept) == 0 {
		delete(r, collection)
	} else {
		r[collection] = kept
	}
	return true
}

// Clone returns a deep copy; never nil.
func (r NodeRefs) Clone() NodeRefs {
	out := make(NodeRefs, len(r))
	for k, v := range r {
		out[k] = slices.Clone(v)
	}
	return out
}

// Len counts all references.
func (r NodeRefs) Len() int {
	n := 0
	for _, ids := range r {
		n += len(ids)
	}
	return n
}

// Ref is a single (collection, uuid) reference.
type Ref struct {
	Collection string
	ID         string
}

// Each returns the references in a deterministic order.
func (r NodeRefs) Each() []Ref {
	var out []Ref
	for _, c := range slices.Sorted(maps.Keys(r)) {
		for _, id := range r[c] {
			out = append(out, Ref{Collection: c, ID: id})
		}
	}
	return out
}

// Minus returns the references in r that are absent from other.
func (r NodeRefs) Minus(other NodeRefs) NodeRefs {
	out := NodeRefs{}
	for _, ref := range r.Each() {
		if !other.Contains(ref.Collection, ref.ID) {
			out.Add(ref.Collection, ref.ID)
		}
	}
	return out
}

// Node is a hierarchical content document (pathway, competency, skill, ...).
// Parent and child references are stored as id lists inside the row.
type Node struct {
	ID               uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"uuid"`
	Collection       string                       `gorm:"type:varchar(64);index;not null" json:"collection"`
	Name             string                       `gorm:"not null" json:"name"`
	Description      string                       `gorm:"type:text" json:"description"`
	Metadata         datatypes.JSON               `gorm:"type:jsonb" json:"metadata,omitempty"`
	ParentNodes      datatypes.JSONType[NodeRefs] `gorm:"type:jsonb;not null" json:"parent_nodes"`
	ChildNodes       datatypes.JSONType[NodeRefs] `gorm:"type:jsonb;not null" json:"child_nodes"`
	IsArchived       bool                         `gorm:"not null;default:false;index" json:"is_archived"`
	IsDeleted        bool                         `gorm:"not null;default:false;index" json:"is_deleted"`
	Version          int                          `gorm:"not null;default:1" json:"version"`
	CreatedTime      time.Time                    `gorm:"autoCreateTime" json:"created_time"`
	LastModifiedTime time.Time                    `gorm:"autoUpdateTime" json:"last_modified_time"`
}

// BeforeCreate assigns the uuid on first save and normalizes reference maps.
func (n *Node) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Version == 0 {
		n.Version = 1
	}
	n.SetParents(n.Parents())
	n.SetChildren(n.Children())
	return nil
}

// Parents returns a copy of the parent references.
func (n *Node) Parents() NodeRefs { return n.ParentNodes.Data().Clone() }

// Children returns a copy of the child references.
func (n *Node) Children() NodeRefs { return n.ChildNodes.Data().Clone() }

// SetParents replaces the parent references.
func (n *Node) SetParents(r NodeRefs) { n.ParentNodes = datatypes.NewJSONType(r.Clone()) }

// SetChildren replaces the child references.
func (n *Node) SetChildren(r NodeRefs) { n.ChildNodes = datatypes.NewJSONType(r.Clone()) }

// Key is the uuid as it appears in neighbours' reference lists.
func (n *Node) Key() string { return n.ID.String() }
