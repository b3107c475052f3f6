package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"agendo/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentReservation_SameWindow(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	seedProfessional(t, db, models.AdvancedSettings{})

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			results <- db.CreateReservation(ctx, testReservation(9*60), models.AdvancedSettings{})
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	takenCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, ErrSlotTaken):
			takenCount++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successCount, "exactly one hold should win the window")
	assert.Equal(t, numGoroutines-1, takenCount)

	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	holds, err := db.ListActiveReservationsByDay(ctx, "pro-1", date, time.Now())
	require.NoError(t, err)
	assert.Len(t, holds, 1)
}

func TestConcurrentFinalize_SingleAppointment(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "finalize.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	seedProfessional(t, db, models.AdvancedSettings{})

	res := testReservation(9 * 60)
	require.NoError(t, db.CreateReservation(ctx, res, models.AdvancedSettings{}))

	const numGoroutines = 8
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	ids := make(chan string, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			apptID, fErr := db.FinalizeReservation(ctx, res.ID, models.PaymentApproved, models.AdvancedSettings{})
			if fErr != nil {
				t.Errorf("finalize failed: %v", fErr)
				return
			}
			ids <- apptID
		}()
	}

	wg.Wait()
	close(ids)

	unique := make(map[string]struct{})
	for id := range ids {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, 1, "all finalize calls should converge on one appointment")

	appointments, err := db.ListBlockingAppointmentsByDay(ctx, "pro-1", res.Date)
	require.NoError(t, err)
	assert.Len(t, appointments, 1)
}

func TestConcurrentMixed_HoldVersusDirect(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "mixed.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	seedProfessional(t, db, models.AdvancedSettings{})

	var wg sync.WaitGroup
	wg.Add(2)
	results := make(chan error, 2)

	go func() {
		defer wg.Done()
		results <- db.CreateReservation(ctx, testReservation(9*60), models.AdvancedSettings{})
	}()
	go func() {
		defer wg.Done()
		results <- db.CreateAppointment(ctx, testAppointment(9*60), models.AdvancedSettings{})
	}()

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		} else {
			assert.ErrorIs(t, err, ErrSlotTaken)
		}
	}
	assert.Equal(t, 1, successCount, "the window must go to exactly one writer")
}
