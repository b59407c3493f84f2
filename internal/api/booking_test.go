package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djangify/storefront/internal/domain"
)

func newBookingServer(t *testing.T) *httptest.Server {
	r := chi.NewRouter()

	r.Get("/appointments-booking/api/public/{username}/", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"username":     chi.URLParam(req, "username"),
			"display_name": "Corrin Smith",
			"timezone":     "Europe/London",
			"appointment_types": []map[string]any{
				{"id": 3, "name": "Consultation", "duration_minutes": 30, "price": "25.00"},
			},
		})
	})
	r.Get("/appointments-booking/api/public/{username}/slots/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("appointment_type_id") != "3" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"date": "2026-09-01", "start_time": "09:00", "end_time": "09:30"},
			{"date": "2026-09-01", "start_time": "10:00", "end_time": "10:30"},
		})
	})
	r.Post("/appointments-booking/api/public/book/", func(w http.ResponseWriter, req *http.Request) {
		var booking domain.AppointmentBooking
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&booking))
		if booking.CustomerEmail == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string][]string{
				"non_field_errors": {"Customer email is required."},
			})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id": 42, "status": "confirmed", "payment_required": true, "payment_amount": "25.00",
			"customer_name": booking.CustomerName, "customer_email": booking.CustomerEmail,
			"date": booking.Date, "start_time": booking.StartTime, "end_time": "09:30",
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchCalendarUser(t *testing.T) {
	srv := newBookingServer(t)
	c := NewClient(srv.URL, discardLogger())

	cal, err := c.FetchCalendarUser(context.Background(), "corrin")
	require.NoError(t, err)
	assert.Equal(t, "corrin", cal.Username)
	require.Len(t, cal.AppointmentTypes, 1)
	assert.Equal(t, 30, cal.AppointmentTypes[0].DurationMinutes)
}

func TestFetchAvailableSlots(t *testing.T) {
	srv := newBookingServer(t)
	c := NewClient(srv.URL, discardLogger())

	slots, err := c.FetchAvailableSlots(context.Background(), "corrin", 3, "2026-09-01", "")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].StartTime)
}

func TestBookAppointment(t *testing.T) {
	srv := newBookingServer(t)
	c := NewClient(srv.URL, discardLogger())

	confirmation, err := c.BookAppointment(context.Background(), domain.AppointmentBooking{
		AppointmentTypeID: 3,
		CustomerName:      "Jo Doe",
		CustomerEmail:     "jo@example.com",
		Date:              "2026-09-01",
		StartTime:         "09:00",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 42, confirmation.ID)
	assert.Equal(t, "confirmed", confirmation.Status)
	assert.True(t, confirmation.PaymentRequired)
	require.NotNil(t, confirmation.PaymentAmount)
	assert.Equal(t, "25", confirmation.PaymentAmount.String())
}

func TestBookAppointment_ValidationError(t *testing.T) {
	srv := newBookingServer(t)
	c := NewClient(srv.URL, discardLogger())

	_, err := c.BookAppointment(context.Background(), domain.AppointmentBooking{AppointmentTypeID: 3})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Customer email is required.", apiErr.Message())
}
