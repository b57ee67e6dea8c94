package models

import "time"

type UserRole string

const (
	RoleMaster UserRole = "master"
	RoleClient UserRole = "client"
)

func (r UserRole) Valid() bool {
	return r == RoleMaster || r == RoleClient
}

// Category is the facility type a client belongs to or a template targets.
type Category string

const (
	CategoryHoikuen        Category = "hoikuen"
	CategoryNinteiKodomoen Category = "nintei_kodomoen"
	CategoryYouchien       Category = "youchien"
)

var categoryLabels = map[Category]string{
	CategoryHoikuen:        "保育園",
	CategoryNinteiKodomoen: "認定こども園",
	CategoryYouchien:       "幼稚園",
}

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryHoikuen, CategoryNinteiKodomoen, CategoryYouchien}
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

type User struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;size:120;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	Role         UserRole  `gorm:"type:varchar(20);not null;default:client"`
	Category     *Category `gorm:"type:varchar(32)"` // clients only
	CreatedAt    time.Time
}

func (u User) IsMaster() bool { return u.Role == RoleMaster }
