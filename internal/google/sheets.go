// Package google mirrors confirmed appointments into each
// professional's spreadsheet. Writes are best-effort and run through
// the async worker; the booking flow never waits on Sheets.
package google

import (
	"context"
	"fmt"
	"os"

	"agendo/internal/availability"
	"agendo/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const appointmentsRange = "Appointments!A:H"

type SheetsService struct {
	service *sheets.Service
}

// NewSheetsService builds a Sheets client from a service account
// credentials file.
func NewSheetsService(ctx context.Context, credentialsFile string) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &SheetsService{service: srv}, nil
}

// TestConnection reads one cell to verify access to a spreadsheet.
func (s *SheetsService) TestConnection(ctx context.Context, spreadsheetID string) error {
	_, err := s.service.Spreadsheets.Values.Get(spreadsheetID, "Appointments!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// AppendAppointment appends one appointment row to the professional's
// spreadsheet.
func (s *SheetsService) AppendAppointment(ctx context.Context, spreadsheetID string, appt *models.Appointment, svc *models.Service) error {
	serviceName := appt.ServiceID
	if svc != nil {
		serviceName = svc.Name
	}

	row := []interface{}{
		appt.ID,
		appt.Date.Format(models.DateLayout),
		availability.Clock(appt.StartMin),
		availability.Clock(appt.StartMin + appt.DurationMin),
		serviceName,
		appt.Client.Name,
		appt.Client.Phone,
		appt.Status,
	}

	valueRange := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := s.service.Spreadsheets.Values.
		Append(spreadsheetID, appointmentsRange, valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append appointment row: %v", err)
	}
	return nil
}
