package services

// Role 调用者角色
type Role string

const (
	RoleGuard  Role = "guard"
	RoleClient Role = "client"
)

// Principal 已认证的调用者，由 JWT 中间件注入
type Principal struct {
	ID          uint `json:"id"`
	Role        Role `json:"role"`
	ApartmentID uint `json:"apartment_id"`
}

func (p Principal) IsGuard() bool  { return p.Role == RoleGuard }
func (p Principal) IsClient() bool { return p.Role == RoleClient }

// Guard 构造门岗身份
func Guard(id, apartmentID uint) Principal {
	return Principal{ID: id, Role: RoleGuard, ApartmentID: apartmentID}
}

// Resident 构造住户身份
func Resident(id, apartmentID uint) Principal {
	return Principal{ID: id, Role: RoleClient, ApartmentID: apartmentID}
}
