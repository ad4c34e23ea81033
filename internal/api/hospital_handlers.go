package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eldercare/hospital-registration/internal/hospital"
)

func listDepartmentsHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departments, err := svc.Departments(r.Context())
		if err != nil {
			writeInternalError(w, err)
			return
		}
		if departments == nil {
			departments = []string{}
		}

		writeJSON(w, http.StatusOK, departments)
	}
}

func hospitalsByDepartmentHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept := r.URL.Query().Get("department")

		hospitals, err := svc.HospitalsByDepartment(r.Context(), dept)
		if err != nil {
			writeInternalError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toHospitalResponses(hospitals))
	}
}

func listHospitalsHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hospitals, err := svc.AllHospitals(r.Context())
		if err != nil {
			writeInternalError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toHospitalResponses(hospitals))
	}
}

func hospitalDetailHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		h, err := svc.Detail(r.Context(), id)
		if err != nil {
			handleCatalogError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toHospitalResponse(h))
	}
}

func hospitalDepartmentsHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		departments, err := svc.DepartmentsOf(r.Context(), id)
		if err != nil {
			handleCatalogError(w, err)
			return
		}
		if departments == nil {
			departments = []string{}
		}

		writeJSON(w, http.StatusOK, departments)
	}
}

func nearbyHospitalsHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lon := parseFloatParam(q.Get("longitude"))
		lat := parseFloatParam(q.Get("latitude"))
		radius := parseFloatParam(q.Get("radius"))
		dept := q.Get("department")

		nearby, err := svc.Nearby(r.Context(), lon, lat, radius, dept)
		if err != nil {
			writeInternalError(w, err)
			return
		}

		resp := make([]NearbyHospitalResponse, 0, len(nearby))
		for i := range nearby {
			n := &nearby[i]
			resp = append(resp, NearbyHospitalResponse{
				HospitalResponse: toHospitalResponse(&n.Hospital),
				DistanceKm:       n.DistanceKm,
				Available:        n.Available,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func checkAvailableHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		available, err := svc.CheckAvailable(r.Context(), id)
		if err != nil {
			writeInternalError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			HospitalID: id,
			Available:  available,
		})
	}
}

func appointmentInfoHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		info, err := svc.AppointmentInfo(r.Context(), id)
		if err != nil {
			handleCatalogError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentInfoResponse{
			HospitalResponse: toHospitalResponse(&info.Hospital),
			BookedQuota:      info.BookedQuota,
			Available:        info.Available,
			Message:          info.Message,
		})
	}
}

func searchHospitalsHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchHospitalsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		criteria := hospital.SearchCriteria{
			Keyword:      req.Keyword,
			Level:        req.Level,
			Type:         req.Type,
			RequireQuota: req.RequireQuota,
			SortField:    hospital.SortField(req.SortField),
			SortAsc:      req.SortOrder == "asc",
		}

		hospitals, err := svc.Search(r.Context(), criteria)
		if err != nil {
			writeInternalError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toHospitalResponses(hospitals))
	}
}

func handleCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hospital.ErrHospitalNotFound):
		writeError(w, http.StatusNotFound, "hospital_not_found", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func toHospitalResponses(hospitals []hospital.Hospital) []HospitalResponse {
	resp := make([]HospitalResponse, 0, len(hospitals))
	for i := range hospitals {
		resp = append(resp, toHospitalResponse(&hospitals[i]))
	}
	return resp
}

func parseFloatParam(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
