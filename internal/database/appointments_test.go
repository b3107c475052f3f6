package database

import (
	"context"
	"testing"
	"time"

	"agendo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAppointment(start int) *models.Appointment {
	return &models.Appointment{
		ProfessionalID: "pro-1",
		ServiceID:      "svc-1",
		Date:           time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		StartMin:       start,
		DurationMin:    60,
		Client: models.ClientInfo{
			Name:  "Diego Souza",
			Phone: "+5511777770000",
		},
	}
}

func TestCreateAppointment_Direct(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	seedProfessional(t, db, models.AdvancedSettings{})

	appt := testAppointment(10 * 60)
	require.NoError(t, db.CreateAppointment(ctx, appt, models.AdvancedSettings{}))
	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, models.StatusScheduled, appt.Status)

	got, err := db.GetAppointment(ctx, "pro-1", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, 10*60, got.StartMin)
	assert.Equal(t, "Diego Souza", got.Client.Name)
}

func TestCreateAppointment_ConflictsWithActiveHold(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	seedProfessional(t, db, models.AdvancedSettings{})

	require.NoError(t, db.CreateReservation(ctx, testReservation(10*60), models.AdvancedSettings{}))

	err := db.CreateAppointment(ctx, testAppointment(10*60), models.AdvancedSettings{})
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestCancelAppointment_ReleasesWindow(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	seedProfessional(t, db, models.AdvancedSettings{})

	appt := testAppointment(10 * 60)
	require.NoError(t, db.CreateAppointment(ctx, appt, models.AdvancedSettings{}))

	err := db.CreateAppointment(ctx, testAppointment(10*60), models.AdvancedSettings{})
	require.ErrorIs(t, err, ErrSlotTaken)

	require.NoError(t, db.CancelAppointment(ctx, "pro-1", appt.ID))

	err = db.CreateAppointment(ctx, testAppointment(10*60), models.AdvancedSettings{})
	assert.NoError(t, err)

	blocking, err := db.ListBlockingAppointmentsByDay(ctx, "pro-1", appt.Date)
	require.NoError(t, err)
	assert.Len(t, blocking, 1)
}

func TestCancelAppointment_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.CancelAppointment(context.Background(), "pro-1", "missing")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestListAppointmentsByRange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	seedProfessional(t, db, models.AdvancedSettings{})

	day1 := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 5)

	for _, date := range []time.Time{day1, day2, day3} {
		appt := testAppointment(10 * 60)
		appt.Date = date
		require.NoError(t, db.CreateAppointment(ctx, appt, models.AdvancedSettings{}))
	}

	got, err := db.ListAppointmentsByRange(ctx, "pro-1", day1, day2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day1, got[0].Date)
	assert.Equal(t, day2, got[1].Date)
}
