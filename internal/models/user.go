package models

import "time"

// Role is a resident or staff role.
type Role string

const (
	RoleUser         Role = "USER"
	RoleStaff        Role = "STAFF"
	RoleLaundryAdmin Role = "LAUNDRY_ADMIN"
	RoleRooftopAdmin Role = "ROOFTOP_ADMIN"
	RoleMasterAdmin  Role = "MASTER_ADMIN"
)

var roleImplies = map[Role][]Role{
	RoleMasterAdmin:  {RoleLaundryAdmin, RoleRooftopAdmin},
	RoleLaundryAdmin: {RoleStaff},
	RoleRooftopAdmin: {RoleStaff},
	RoleStaff:        {RoleUser},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleLaundryAdmin, RoleRooftopAdmin, RoleMasterAdmin:
		return true
	}
	return false
}

// Includes reports whether holding r grants want through the role hierarchy.
func (r Role) Includes(want Role) bool {
	if r == want {
		return true
	}
	for _, implied := range roleImplies[r] {
		if implied.Includes(want) {
			return true
		}
	}
	return false
}

// User is a resident identified by room number.
type User struct {
	RoomNumber              string     `json:"room_number"`
	Name                    string     `json:"name"`
	Role                    Role       `json:"role"`
	LastBookingActivity     *time.Time `json:"last_booking_activity,omitempty"`
	MaxWasherMinutesPerWeek *int       `json:"max_washer_minutes_per_week,omitempty"`
	MaxDryerMinutesPerWeek  *int       `json:"max_dryer_minutes_per_week,omitempty"`
	TelegramChatID          int64      `json:"telegram_chat_id,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

// HasRole reports whether the user holds want directly or through the hierarchy.
func (u *User) HasRole(want Role) bool {
	return u != nil && u.Role.Includes(want)
}

// WeeklyCap returns the user's personal minute cap for a machine type, if set.
func (u *User) WeeklyCap(t MachineType) *int {
	switch t {
	case MachineWasher:
		return u.MaxWasherMinutesPerWeek
	case MachineDryer:
		return u.MaxDryerMinutesPerWeek
	}
	return nil
}
