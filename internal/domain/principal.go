package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is the already-authenticated caller of a core operation.
type Principal struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// SystemPrincipal is used by background jobs such as the crypto poller.
func SystemPrincipal(name string) Principal {
	return Principal{UserID: "system:" + name, Role: RoleAdmin}
}
