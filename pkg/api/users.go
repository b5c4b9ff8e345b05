package api

import "net/url"

// UserRole is the access level of an account.
type UserRole string

const (
	RoleSuperAdmin UserRole = "superadmin"
	RoleAdmin      UserRole = "admin"
	RoleUser       UserRole = "user"
	RoleGuest      UserRole = "guest"
)

// IsAdmin reports whether the role bypasses per-application access filtering.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusInactive  UserStatus = "inactive"
	StatusSuspended UserStatus = "suspended"
	StatusDeleted   UserStatus = "deleted"
)

// UserListItem is a row of GET /users.
type UserListItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Alias       string     `json:"alias,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	DateOfBirth string     `json:"date_of_birth,omitempty"`
	Address     string     `json:"address,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	Status      UserStatus `json:"status"`
	Role        UserRole   `json:"role"`
	CreatedAt   string     `json:"created_at"`
}

// User is the full account record.
type User struct {
	UserListItem
	UpdatedAt   string       `json:"updated_at"`
	AllowedApps []AllowedApp `json:"allowed_apps"`
}

// ListItem trims a full record down to its list representation.
func (u *User) ListItem() UserListItem {
	return u.UserListItem
}

// UserCreateRequest is the body of POST /users.
type UserCreateRequest struct {
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	AvatarPath  string     `json:"avatar_path,omitempty"`
	Alias       string     `json:"alias,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	DateOfBirth string     `json:"date_of_birth,omitempty"`
	Address     string     `json:"address,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	Role        UserRole   `json:"role,omitempty"`
	Status      UserStatus `json:"status,omitempty"`
}

// UserUpdateRequest is the body of PATCH /users/{id} and /users/me.
// Nil fields are left untouched by the backend.
type UserUpdateRequest struct {
	Name        *string     `json:"name,omitempty"`
	Email       *string     `json:"email,omitempty"`
	Phone       *string     `json:"phone,omitempty"`
	AvatarPath  *string     `json:"avatar_path,omitempty"`
	Alias       *string     `json:"alias,omitempty"`
	Gender      *string     `json:"gender,omitempty"`
	DateOfBirth *string     `json:"date_of_birth,omitempty"`
	Address     *string     `json:"address,omitempty"`
	Bio         *string     `json:"bio,omitempty"`
	Role        *UserRole   `json:"role,omitempty"`
	Status      *UserStatus `json:"status,omitempty"`
}

// UserFilter narrows GET /users.
type UserFilter struct {
	PaginationParams
	Status string
	Role   string
	Gender string
}

// Values encodes the filter as a query string.
func (f UserFilter) Values() url.Values {
	v := f.PaginationParams.Values()
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	if f.Role != "" {
		v.Set("role", f.Role)
	}
	if f.Gender != "" {
		v.Set("gender", f.Gender)
	}
	return v
}
