package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConnID identifies a single transport connection. A user reconnecting gets a new one.
type ConnID string

func NewConnID() ConnID { return ConnID(uuid.NewString()) }

func (id ConnID) String() string { return string(id) }

// Connection is the registry's view of a live connection.
// No transport or lifecycle logic here.
type Connection struct {
	User        UserID    `json:"user"`
	ID          ConnID    `json:"conn"`
	ConnectedAt time.Time `json:"connected_at"`
}
