package model

import "time"

// User 描述登录用户信息。
type User struct {
	ID          int       `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	CompanyName string    `json:"company_name,omitempty"`
	Role        string    `json:"role,omitempty"`
	DateJoined  time.Time `json:"date_joined,omitempty"`
}
