// AngelaMos | 2026
// dto.go

package account

import (
	"time"
)

// Response is the sanitized account returned to clients. It never carries
// credentials, secrets, retry counters or login bookkeeping.
type Response struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	AccountType string    `json:"accountType"`
	Role        string    `json:"role"`
	IsSuspended bool      `json:"isSuspended"`
	IsDeleted   bool      `json:"isDeleted"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ListResponse struct {
	Accounts []Response `json:"accounts"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
}

type Stats struct {
	Total     int `db:"total"     json:"total"`
	Verified  int `db:"verified"  json:"verified"`
	Suspended int `db:"suspended" json:"suspended"`
	Deleted   int `db:"deleted"   json:"deleted"`
}

type ListParams struct {
	Page      int
	PageSize  int
	Role      string
	Suspended *bool
	Deleted   *bool
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToResponse(a *Account) Response {
	return Response{
		ID:          a.ID,
		Email:       a.Email,
		Username:    a.Username,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		AccountType: a.AccountType,
		Role:        a.Role,
		IsSuspended: a.IsSuspended,
		IsDeleted:   a.IsDeleted,
		CreatedAt:   a.CreatedAt,
	}
}

func ToResponseList(accounts []Account) []Response {
	responses := make([]Response, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, ToResponse(&accounts[i]))
	}
	return responses
}
