package model

import (
	"fmt"
	"strings"
	"time"
)

// ReferenceType names the kind of entity an unavailability blocks.  The
// values match the ENUM stored in unavailabilities.reference_type.
type ReferenceType string

const (
	ReferenceDriver  ReferenceType = "Driver"
	ReferenceHotel   ReferenceType = "Hotel"
	ReferenceVehicle ReferenceType = "Vehicle"
)

// ReferenceTypes lists every accepted reference type in display order.
var ReferenceTypes = []ReferenceType{ReferenceDriver, ReferenceHotel, ReferenceVehicle}

// Valid reports whether t is one of the known reference types.
func (t ReferenceType) Valid() bool {
	switch t {
	case ReferenceDriver, ReferenceHotel, ReferenceVehicle:
		return true
	}
	return false
}

// ParseReferenceType accepts the canonical spelling and is lenient about
// case ("driver", "HOTEL").
func ParseReferenceType(s string) (ReferenceType, error) {
	s = strings.TrimSpace(s)
	for _, t := range ReferenceTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown reference type %q", s)
}

// ReferenceKey identifies the real-world entity an interval applies to.
// Two unavailabilities can only conflict when their keys are equal.
type ReferenceKey struct {
	ID   uint64
	Type ReferenceType
}

func (k ReferenceKey) String() string {
	return fmt.Sprintf("%s:%d", k.Type, k.ID)
}

// Less orders keys by type then id.  Locks are always taken in this order.
func (k ReferenceKey) Less(o ReferenceKey) bool {
	if k.Type != o.Type {
		return k.Type < o.Type
	}
	return k.ID < o.ID
}

// Unavailability is a half-open interval [StartDatetime, EndDatetime)
// during which a driver, hotel or vehicle cannot be booked.
//
// Fields:
//
//	ID            – primary key identifier.
//	ReferenceID   – id of the blocked entity in its own table.
//	ReferenceType – which table ReferenceID points into.
//	StartDatetime – first blocked instant (inclusive).
//	EndDatetime   – end of the block (exclusive); always after StartDatetime.
//	Reason        – optional free text.
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type Unavailability struct {
	ID            uint64        `json:"id"`             // unavailabilities.id
	ReferenceID   uint64        `json:"reference_id"`   // unavailabilities.reference_id
	ReferenceType ReferenceType `json:"reference_type"` // unavailabilities.reference_type
	StartDatetime time.Time     `json:"start_datetime"` // unavailabilities.start_datetime
	EndDatetime   time.Time     `json:"end_datetime"`   // unavailabilities.end_datetime
	Reason        *string       `json:"reason"`         // unavailabilities.reason (nullable)
	CreatedAt     time.Time     `json:"created_at"`     // unavailabilities.created_at
	UpdatedAt     time.Time     `json:"updated_at"`     // unavailabilities.updated_at
}

// Key returns the reference key of u.
func (u Unavailability) Key() ReferenceKey {
	return ReferenceKey{ID: u.ReferenceID, Type: u.ReferenceType}
}
