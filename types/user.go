package types

import "time"

type User struct {
	Id         string    `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	LastOnline time.Time `json:"last_online"`
}

// Public returns the user representation sent over the wire.
func (u *User) Public() map[string]interface{} {
	return map[string]interface{}{
		"id":    u.Id,
		"name":  u.Name,
		"email": u.Email,
	}
}
