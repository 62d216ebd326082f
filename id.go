package sequent

import "github.com/xraph/sequent/id"

// ID is the primary identifier type for sequent entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
