package domain

import (
	"context"
	"time"

	"guckelsberg/internal/models"
)

// The durable store must:
//   - find records by identifier and by date range,
//   - enforce uniqueness of laundry (date, slot_start, machine), rooftop booking date,
//     and active rooftop request (booker, date) at write time, reporting ErrDuplicate,
//   - run a function atomically, serialising concurrent writers (RunInTx).
//
// Get* methods return (nil, nil) when no record exists.

// UserRepository stores residents.
type UserRepository interface {
	GetUser(ctx context.Context, roomNumber string) (*models.User, error)
	UpsertUser(ctx context.Context, u *models.User) error
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserRole(ctx context.Context, roomNumber string, role models.Role) error
	SetWeeklyLimits(ctx context.Context, roomNumber string, washer, dryer *int) error
	SetTelegramChat(ctx context.Context, roomNumber string, chatID int64) error
	TouchBookingActivity(ctx context.Context, roomNumber string, at time.Time) error
}

// MachineRepository stores laundry machines.
type MachineRepository interface {
	GetMachine(ctx context.Context, name string) (*models.Machine, error)
	ListMachines(ctx context.Context) ([]models.Machine, error)
	InsertMachine(ctx context.Context, m *models.Machine) error
	DeleteMachine(ctx context.Context, name string) error
}

// SlotBookingFilter narrows slot booking queries. Zero values are ignored; dates are inclusive.
type SlotBookingFilter struct {
	Machine     string
	MachineType models.MachineType
	Booker      string
	From        time.Time
	To          time.Time
	SlotStart   *int
	Newest      bool // order by date desc, slot desc
	Limit       int
	Offset      int
}

// SlotBookingRepository stores laundry reservations.
type SlotBookingRepository interface {
	GetSlotBooking(ctx context.Context, id int64) (*models.SlotBooking, error)
	InsertSlotBooking(ctx context.Context, b *models.SlotBooking) error
	DeleteSlotBooking(ctx context.Context, id int64) error
	ListSlotBookings(ctx context.Context, f SlotBookingFilter) ([]models.SlotBooking, error)
	CountSlotBookings(ctx context.Context, f SlotBookingFilter) (int, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

// OverrideFilter selects rules whose date range intersects [From, To].
type OverrideFilter struct {
	Machine string
	From    time.Time
	To      time.Time
}

// OverrideRepository stores administrator override rules.
type OverrideRepository interface {
	GetOverride(ctx context.Context, id int64) (*models.Override, error)
	InsertOverride(ctx context.Context, o *models.Override) error
	UpdateOverride(ctx context.Context, o *models.Override) error
	DeleteOverride(ctx context.Context, id int64) error
	ListOverrides(ctx context.Context, f OverrideFilter) ([]models.Override, error)
}

// RooftopFilter narrows rooftop booking queries. Dates are inclusive.
type RooftopFilter struct {
	Booker string
	From   time.Time
	To     time.Time
	Newest bool
}

// RooftopRepository stores confirmed rooftop bookings.
type RooftopRepository interface {
	GetRooftopBooking(ctx context.Context, id int64) (*models.RooftopBooking, error)
	GetRooftopBookingByDate(ctx context.Context, date time.Time) (*models.RooftopBooking, error)
	InsertRooftopBooking(ctx context.Context, b *models.RooftopBooking) error
	DeleteRooftopBooking(ctx context.Context, id int64) error
	ListRooftopBookings(ctx context.Context, f RooftopFilter) ([]models.RooftopBooking, error)
}

// RequestFilter narrows rooftop request queries.
type RequestFilter struct {
	Booker string
	Status models.RequestStatus
	From   time.Time
	To     time.Time
}

// RequestRepository stores rooftop booking requests.
type RequestRepository interface {
	GetRequest(ctx context.Context, id int64) (*models.RooftopRequest, error)
	FindActiveRequest(ctx context.Context, booker string, date time.Time) (*models.RooftopRequest, error)
	InsertRequest(ctx context.Context, r *models.RooftopRequest) error
	UpdateRequest(ctx context.Context, r *models.RooftopRequest) error
	ListRequests(ctx context.Context, f RequestFilter) ([]models.RooftopRequest, error)
	CountRequests(ctx context.Context, f RequestFilter) (int, error)
}

// Tx is the full repository surface, usable inside or outside a transaction.
type Tx interface {
	UserRepository
	MachineRepository
	SlotBookingRepository
	OverrideRepository
	RooftopRepository
	RequestRepository
}

// Store is a Tx that can also run functions atomically.
// A non-nil error from fn rolls back every write made through tx.
type Store interface {
	Tx
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// EnsureUser returns the user with the given room number, registering it on first use.
// Identity is established by the caller, so an unknown room is a new resident.
func EnsureUser(ctx context.Context, users UserRepository, room string) (*models.User, error) {
	if room == "" {
		return nil, Forbidden("Requester identity is required.")
	}
	user, err := users.GetUser(ctx, room)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	user = &models.User{RoomNumber: room}
	if err := users.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
