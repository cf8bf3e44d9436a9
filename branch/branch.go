// Package branch defines the Branch entity (a clinic location backed by a
// tenant row) and its store interface.
package branch

import (
	"strings"
	"time"

	"github.com/imranmit2020/open-dental-helper-sub002/id"
)

// Table is the directory table name used by change-feed events.
const Table = "tenants"

// Coordinates is a geographic point.
type Coordinates struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Branch is a clinic location. Coordinates is derived by geocoding
// Address and is never persisted by stores.
type Branch struct {
	ID          id.BranchID  `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	Address     *string      `json:"address" db:"address"`
	Phone       string       `json:"phone,omitempty" db:"phone"`
	Email       string       `json:"email,omitempty" db:"email"`
	ClinicCode  string       `json:"clinic_code,omitempty" db:"clinic_code"`
	Coordinates *Coordinates `json:"coordinates"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// HasAddress reports whether the branch has a geocodable address.
func (b *Branch) HasAddress() bool {
	return b.Address != nil && strings.TrimSpace(*b.Address) != ""
}

// Clone returns a deep copy of b.
func (b *Branch) Clone() *Branch {
	cp := *b
	if b.Address != nil {
		a := *b.Address
		cp.Address = &a
	}
	if b.Coordinates != nil {
		c := *b.Coordinates
		cp.Coordinates = &c
	}
	return &cp
}
