package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// DesignID identifies a stored design iteration.
type DesignID ID

// NewDesignID returns a fresh time-ordered design ID.
func NewDesignID() DesignID { return DesignID(NewID()) }

func (id DesignID) String() string { return ID(id).String() }

// IsEmpty checks if the ID is empty
func (id DesignID) IsEmpty() bool { return id == "" }

// ParseDesignID parses a string into DesignID
func ParseDesignID(s string) (DesignID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("design ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("design ID %q is not a UUID: %w", s, err)
	}
	return DesignID(s), nil
}
