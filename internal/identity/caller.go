// Package identity описывает вызывающего пользователя. Аутентификация внешняя:
// шлюз передаёт id и роли, здесь они только разбираются и проверяются.
package identity

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Ошибки разбора вызывающего.
var (
	ErrInvalidUserID = errors.New("invalid user id")
	ErrUnknownRole   = errors.New("unknown role")
)

// Роль пользователя в системе.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Caller описывает того, кто выполняет операцию.
type Caller struct {
	UserID uuid.UUID
	Roles  []Role
}

// HasRole сообщает, есть ли у вызывающего роль r.
func (c Caller) HasRole(r Role) bool {
	for _, have := range c.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// IsAdmin сообщает, что вызывающий администрирует бизнес.
func (c Caller) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// Is сообщает, что вызывающий и есть пользователь id.
func (c Caller) Is(id uuid.UUID) bool {
	return c.UserID != uuid.Nil && c.UserID == id
}

// ParseCaller:
//   - проверяет идентификатор пользователя;
//   - разбирает роли из строки через запятую;
//   - возвращает нормализованного вызывающего или ошибку.
func ParseCaller(userID, roles string) (Caller, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil || id == uuid.Nil {
		return Caller{}, ErrInvalidUserID
	}

	c := Caller{UserID: id}
	for _, raw := range strings.Split(roles, ",") {
		r := Role(strings.ToLower(strings.TrimSpace(raw)))
		if r == "" {
			continue
		}
		switch r {
		case RoleCustomer, RoleStaff, RoleAdmin:
		default:
			return Caller{}, ErrUnknownRole
		}
		if !c.HasRole(r) {
			c.Roles = append(c.Roles, r)
		}
	}
	if len(c.Roles) == 0 {
		c.Roles = []Role{RoleCustomer}
	}
	return c, nil
}
