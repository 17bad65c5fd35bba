package dto

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// UserRegisterRequest payload for new accounts. UserStatus is accepted but ignored:
// new accounts always start ACTIVE.
type UserRegisterRequest struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserEmail    string `json:"userEmail"`
	UserPassword string `json:"userPassword"`
	UserStatus   string `json:"userStatus,omitempty"`
}

// UserUpdateRequest replaces every mutable field of an account.
type UserUpdateRequest struct {
	UserName     string `json:"userName"`
	UserEmail    string `json:"userEmail"`
	UserPassword string `json:"userPassword"`
	UserStatus   string `json:"userStatus"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	UserID        string     `json:"userId"`
	UserName      string     `json:"userName"`
	UserEmail     string     `json:"userEmail"`
	UserStatus    string     `json:"userStatus"`
	LastLoginDate *time.Time `json:"lastLoginDate"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// PageMeta describes the position of a page in a result set.
type PageMeta struct {
	Page    int   `json:"page"`
	Size    int   `json:"size"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"hasNext"`
}

// NewUserResponse maps a domain user to its public view.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		UserID:        u.ID,
		UserName:      u.Name,
		UserEmail:     u.Email,
		UserStatus:    string(u.Status),
		LastLoginDate: u.LastLoginDate,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// NewUserListResponse maps a page of users.
func NewUserListResponse(p domain.UserPage) ([]UserResponse, PageMeta) {
	items := make([]UserResponse, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, NewUserResponse(&p.Items[i]))
	}
	return items, PageMeta{Page: p.Page, Size: p.Size, Total: p.Total, HasNext: p.HasNext()}
}
