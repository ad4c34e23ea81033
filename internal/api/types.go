package api

import (
	"github.com/eldercare/hospital-registration/internal/booking"
	"github.com/eldercare/hospital-registration/internal/hospital"
)

type BookOrderRequest struct {
	OrderID     string `json:"order_id,omitempty"`
	UserID      string `json:"user_id"`
	HospitalID  string `json:"hospital_id"`
	Department  string `json:"department,omitempty"`
	ReserveDate string `json:"reserve_date"`
}

type OrderResponse struct {
	OrderID      string `json:"order_id"`
	UserID       string `json:"user_id"`
	HospitalID   string `json:"hospital_id"`
	HospitalName string `json:"hospital_name"`
	Department   string `json:"department,omitempty"`
	ReserveDate  string `json:"reserve_date"`
	Status       string `json:"status"`
	CreateTime   int64  `json:"create_time"`
}

func toOrderResponse(o *booking.Order) OrderResponse {
	return OrderResponse{
		OrderID:      o.OrderID,
		UserID:       o.UserID,
		HospitalID:   o.HospitalID,
		HospitalName: o.HospitalName,
		Department:   o.Department,
		ReserveDate:  o.ReserveDate,
		Status:       string(o.Status),
		CreateTime:   o.CreateTime,
	}
}

type OrderWithHospitalResponse struct {
	OrderResponse
	HospitalAddress string `json:"hospital_address"`
	HospitalPhone   string `json:"hospital_phone"`
	OpeningHours    string `json:"opening_hours"`
	HospitalLevel   string `json:"hospital_level"`
}

type UserStatsResponse struct {
	Total     int `json:"total"`
	Booked    int `json:"booked"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

type HospitalResponse struct {
	HospitalID     string   `json:"hospital_id"`
	HospitalName   string   `json:"hospital_name"`
	HospitalLevel  string   `json:"hospital_level"`
	HospitalType   string   `json:"hospital_type"`
	Address        string   `json:"address"`
	Phone          string   `json:"phone"`
	EmergencyPhone string   `json:"emergency_phone,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Departments    string   `json:"departments"`
	DailyQuota     *int     `json:"daily_quota,omitempty"`
	AvailableQuota *int     `json:"available_quota,omitempty"`
	OpeningHours   string   `json:"opening_hours"`
	Status         string   `json:"status"`
}

func toHospitalResponse(h *hospital.Hospital) HospitalResponse {
	return HospitalResponse{
		HospitalID:     h.ID,
		HospitalName:   h.Name,
		HospitalLevel:  h.Level,
		HospitalType:   h.Type,
		Address:        h.Address,
		Phone:          h.Phone,
		EmergencyPhone: h.EmergencyPhone,
		Longitude:      h.Longitude,
		Latitude:       h.Latitude,
		Departments:    h.Departments,
		DailyQuota:     h.DailyQuota,
		AvailableQuota: h.AvailableQuota,
		OpeningHours:   h.OpeningHours,
		Status:         string(h.Status),
	}
}

type NearbyHospitalResponse struct {
	HospitalResponse
	DistanceKm float64 `json:"distance_km"`
	Available  bool    `json:"available"`
}

type SearchHospitalsRequest struct {
	Keyword      string `json:"keyword,omitempty"`
	Level        string `json:"level,omitempty"`
	Type         string `json:"type,omitempty"`
	RequireQuota bool   `json:"require_quota,omitempty"`
	SortField    string `json:"sort_field,omitempty"`
	SortOrder    string `json:"sort_order,omitempty"`
}

type AvailabilityResponse struct {
	HospitalID string `json:"hospital_id"`
	Available  bool   `json:"available"`
}

type AppointmentInfoResponse struct {
	HospitalResponse
	BookedQuota int    `json:"booked_quota"`
	Available   bool   `json:"available"`
	Message     string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
