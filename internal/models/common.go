package models

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type RegisterRequest struct {
	Name      string `json:"name" binding:"required,min=2"`
	FirstName string `json:"firstName" binding:"required,min=2"`
	Email     string `json:"email" binding:"required,email"`
	Country   string `json:"country" binding:"required,min=2"`
	Password  string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token"`
	User    LoginUser `json:"user"`
}

type LoginUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type CreateAdminRequest struct {
	Name      string `json:"name" binding:"required,min=2"`
	FirstName string `json:"firstName" binding:"required,min=2"`
	Email     string `json:"email" binding:"required,email"`
	Country   string `json:"country" binding:"required,min=2"`
	Password  string `json:"password" binding:"required,min=6"`
}

type UserListResponse struct {
	Success bool   `json:"success"`
	Users   []User `json:"users"`
	Total   int64  `json:"total"`
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
}
