package bookings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passthrough(next http.Handler) http.Handler { return next }

func TestHandlerCreateBooking(t *testing.T) {
	svc, mock := newTestService(t, Options{})
	routes := NewHandler(svc, 0, nil).Routes(passthrough)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs(int64(5)).WillReturnRows(lockRows(5, 2, false))
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(int64(5), int64(2), "Asha", noEmail, "CONFIRMED").
		WillReturnRows(bookingRows().AddRow(int64(1), ptr(int64(5)), ptr(int64(2)), "Asha", nil, "CONFIRMED", createdAt, createdAt))
	mock.ExpectQuery(`UPDATE slots SET is_booked = TRUE`).WithArgs(int64(5)).WillReturnRows(slotRow(5, 2))
	mock.ExpectCommit()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"slot_id":5,"user_name":"Asha"}`)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var b Booking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, "Asha", b.UserName)
}

func TestHandlerCreateConflictAndNotFound(t *testing.T) {
	svc, mock := newTestService(t, Options{})
	routes := NewHandler(svc, 0, nil).Routes(passthrough)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs(int64(5)).WillReturnRows(lockRows(5, 2, true))
	mock.ExpectRollback()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"slot_id":5,"user_name":"Ben"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"Slot already booked"}`, rec.Body.String())

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs(int64(77)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"slot_id":77,"user_name":"Ben"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Slot not found"}`, rec.Body.String())
}

func TestHandlerCreateMissingSlotID(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	routes := NewHandler(svc, 0, nil).Routes(passthrough)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"user_name":"Ben"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"slot_id is required"}`, rec.Body.String())
}

func TestHandlerCreateRunsCreateMiddleware(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	blocked := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	routes := NewHandler(svc, 0, nil).Routes(passthrough, blocked)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHandlerExpireUsesMinutes(t *testing.T) {
	svc, mock := newTestService(t, Options{})
	routes := NewHandler(svc, time.Minute, nil).Routes(passthrough)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE bookings SET status = 'FAILED'`).WithArgs(300.0).WillReturnRows(bookingRows())
	mock.ExpectCommit()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expire?minutes=5", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"expired":0,"bookings":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expire?minutes=-2", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerCancel(t *testing.T) {
	svc, mock := newTestService(t, Options{})
	routes := NewHandler(svc, 0, nil).Routes(passthrough)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM bookings`).WithArgs(int64(4)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Booking not found"}`, rec.Body.String())
}
