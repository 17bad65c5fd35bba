package domain

import (
	"math"
	"time"
)

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive  UserStatus = "ACTIVE"
	UserStatusDormant UserStatus = "DORMANT"
	UserStatusDeleted UserStatus = "DELETED"
)

// Valid reports whether s is one of the known statuses.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusDormant, UserStatusDeleted:
		return true
	}
	return false
}

// User is the domain model for a registered account.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Status        UserStatus
	LastLoginDate *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IdleSince reports whether the user last logged in strictly before cutoff.
// Users that never logged in are not idle.
func (u *User) IdleSince(cutoff time.Time) bool {
	return u.LastLoginDate != nil && u.LastLoginDate.Before(cutoff)
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.LastLoginDate != nil {
		t := *u.LastLoginDate
		cp.LastLoginDate = &t
	}
	return &cp
}

// PageRequest selects a zero-based page of results.
type PageRequest struct {
	Page int
	Size int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps the request into a usable range.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	// Keep (Page+1)*Size representable.
	if maxPage := math.MaxInt/p.Size - 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

// Offset returns the number of rows preceding the page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// UserPage is one page of a paginated user query.
type UserPage struct {
	Items []User
	Page  int
	Size  int
	Total int64
}

// NewUserPage builds a page for the given request and total count.
func NewUserPage(items []User, req PageRequest, total int64) UserPage {
	if items == nil {
		items = []User{}
	}
	return UserPage{Items: items, Page: req.Page, Size: req.Size, Total: total}
}

// HasNext reports whether a further page exists.
func (p UserPage) HasNext() bool {
	return int64((p.Page+1)*p.Size) < p.Total
}

// HasContent reports whether the page carries any records.
func (p UserPage) HasContent() bool {
	return len(p.Items) > 0
}
