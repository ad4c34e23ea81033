package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldercare/hospital-registration/internal/booking"
	"github.com/eldercare/hospital-registration/internal/hospital"
	"github.com/eldercare/hospital-registration/internal/quota"
)

func bookOrderHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		order, err := svc.Book(r.Context(), booking.BookRequest{
			OrderID:     req.OrderID,
			UserID:      req.UserID,
			HospitalID:  req.HospitalID,
			Department:  req.Department,
			ReserveDate: req.ReserveDate,
		})
		if err != nil {
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toOrderResponse(order))
	}
}

func cancelOrderHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")

		order, err := svc.Cancel(r.Context(), orderID)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

func completeOrderHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")

		order, err := svc.Complete(r.Context(), orderID)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

func orderDetailHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")

		order, err := svc.OrderDetail(r.Context(), orderID)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

func userOrdersHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		orders, err := svc.UserOrders(r.Context(), userID)
		if err != nil {
			handleQueryError(w, err)
			return
		}

		resp := make([]OrderResponse, 0, len(orders))
		for i := range orders {
			resp = append(resp, toOrderResponse(&orders[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func userOrdersWithHospitalHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		orders, err := svc.UserOrdersWithHospital(r.Context(), userID)
		if err != nil {
			handleQueryError(w, err)
			return
		}

		resp := make([]OrderWithHospitalResponse, 0, len(orders))
		for i := range orders {
			o := &orders[i]
			resp = append(resp, OrderWithHospitalResponse{
				OrderResponse:   toOrderResponse(&o.Order),
				HospitalAddress: o.HospitalAddress,
				HospitalPhone:   o.HospitalPhone,
				OpeningHours:    o.OpeningHours,
				HospitalLevel:   o.HospitalLevel,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func userOrderStatsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		stats, err := svc.UserOrderStats(r.Context(), userID)
		if err != nil {
			handleQueryError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, UserStatsResponse{
			Total:     stats.Total,
			Booked:    stats.Booked,
			Completed: stats.Completed,
			Cancelled: stats.Cancelled,
		})
	}
}

func handleBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrMissingField),
		errors.Is(err, booking.ErrBadReserveDate):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, hospital.ErrHospitalNotFound):
		writeError(w, http.StatusNotFound, "hospital_not_found", err.Error())
	case errors.Is(err, booking.ErrHospitalDisabled):
		writeError(w, http.StatusConflict, "hospital_disabled", err.Error())
	case errors.Is(err, booking.ErrUnknownDepartment):
		writeError(w, http.StatusUnprocessableEntity, "unknown_department", err.Error())
	case errors.Is(err, quota.ErrQuotaExhausted):
		writeError(w, http.StatusConflict, "quota_exhausted", err.Error())
	case errors.Is(err, booking.ErrHospitalBusy):
		writeError(w, http.StatusConflict, "hospital_busy", "another booking is in progress, please retry shortly")
	default:
		writeInternalError(w, err)
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrMissingField):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, booking.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func handleQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrMissingField):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, booking.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, hospital.ErrHospitalNotFound):
		writeError(w, http.StatusNotFound, "hospital_not_found", err.Error())
	default:
		writeInternalError(w, err)
	}
}
