package booking

// OrderStatus is the closed set of appointment states. Booked can move to
// Completed or Cancelled; both of those are terminal.
type OrderStatus string

const (
	StatusBooked    OrderStatus = "booked"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Order is one user's reservation against a hospital, department and date.
// HospitalName is a snapshot taken at booking time; the hospital record may
// change afterwards. Orders are never deleted.
type Order struct {
	OrderID      string
	UserID       string
	HospitalID   string
	HospitalName string
	Department   string
	ReserveDate  string // YYYY-MM-DD
	Status       OrderStatus
	CreateTime   int64 // epoch millis
}

// OrderWithHospital joins an order with the hospital's current contact
// details for display. The join is live: address, phone and hours reflect
// the catalog now, not the state at booking time.
type OrderWithHospital struct {
	Order
	HospitalAddress string
	HospitalPhone   string
	OpeningHours    string
	HospitalLevel   string
}

// UserStats are per-user order counts by status.
type UserStats struct {
	Total     int
	Booked    int
	Completed int
	Cancelled int
}
