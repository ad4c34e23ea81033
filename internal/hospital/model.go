package hospital

import "strings"

type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// Hospital is the catalog record. DailyQuota and AvailableQuota are nil for
// unmetered hospitals; AvailableQuota is owned by the quota ledger and only
// read here.
type Hospital struct {
	ID             string
	Name           string
	Level          string
	Type           string
	Address        string
	Phone          string
	EmergencyPhone string
	Longitude      *float64
	Latitude       *float64
	Departments    string // comma separated
	DailyQuota     *int
	AvailableQuota *int
	OpeningHours   string
	Status         Status
}

// DepartmentList splits the comma separated departments field, trimming
// whitespace and dropping blank tokens.
func (h *Hospital) DepartmentList() []string {
	return SplitDepartments(h.Departments)
}

// HasDepartment reports whether dept is one of the hospital's listed
// departments (exact token match, used to validate bookings).
func (h *Hospital) HasDepartment(dept string) bool {
	for _, d := range h.DepartmentList() {
		if d == dept {
			return true
		}
	}
	return false
}

func SplitDepartments(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

type SortField string

const (
	SortByLevel SortField = "level"
	SortByQuota SortField = "quota"
)

// SearchCriteria filters the catalog search. Zero values mean "no filter".
type SearchCriteria struct {
	Keyword      string
	Level        string
	Type         string
	RequireQuota bool
	SortField    SortField
	SortAsc      bool
}

// NearbyHospital is one row of a nearby search result.
type NearbyHospital struct {
	Hospital
	DistanceKm float64
	Available  bool
}

// AppointmentInfo is the per-hospital booking snapshot shown before a user
// commits to a reservation.
type AppointmentInfo struct {
	Hospital    Hospital
	BookedQuota int
	Available   bool
	Message     string
}
