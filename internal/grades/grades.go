package grades

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/gradebook-io/gradebook/internal/logger"
)

// Scopes for the read-only service account.
const (
	ScopeSheetsReadOnly = "https://www.googleapis.com/auth/spreadsheets.readonly"
	ScopeDriveReadOnly  = "https://www.googleapis.com/auth/drive.readonly"
)

// NotFoundError is returned when the sheet has no row for a student id.
type NotFoundError struct {
	StudentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no records found for student ID: %s", e.StudentID)
}

// SourceError wraps any collaborator-level failure - Sheets API errors,
// a malformed sheet. Reported, never retried: a stale result is never
// substituted.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("error fetching grades (%v)", e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Source supplies the raw cell values of the first worksheet, header
// row included.
type Source interface {
	Values(ctx context.Context) ([][]interface{}, error)
}

// SheetSource reads the first worksheet of a Google Sheets spreadsheet
// with service-account credentials.
type SheetSource struct {
	spreadsheetID string
	service       *sheets.Service
}

func NewSheetSource(ctx context.Context, spreadsheetID, credentials string) (*SheetSource, error) {
	service, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentials),
		option.WithScopes(ScopeSheetsReadOnly, ScopeDriveReadOnly))
	if err != nil {
		return nil, fmt.Errorf("unable to create new Sheets client (%w)", err)
	}

	return &SheetSource{
		spreadsheetID: spreadsheetID,
		service:       service,
	}, nil
}

func (s *SheetSource) Values(ctx context.Context) ([][]interface{}, error) {
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spreadsheet (%w)", err)
	}

	if len(spreadsheet.Sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no worksheets")
	}

	area := fmt.Sprintf("%s!A:ZZ", spreadsheet.Sheets[0].Properties.Title)

	response, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, area).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve data from sheet (%w)", err)
	}

	return response.Values, nil
}

// Service looks up a single student's grade row. Every lookup fetches
// the full table fresh - the sheet is small and read-only from this
// side, and a cache would risk serving stale grades.
type Service struct {
	source Source
	log    zerolog.Logger
}

func NewService(source Source) *Service {
	return &Service{
		source: source,
		log:    logger.Get(),
	}
}

// Lookup returns the first row in table order whose ID column equals
// studentID. String equality - '007' and '7' are different students.
func (s *Service) Lookup(ctx context.Context, studentID string) (Row, error) {
	values, err := s.source.Values(ctx)
	if err != nil {
		return Row{}, &SourceError{Err: err}
	}

	table, err := makeTable(values)
	if err != nil {
		return Row{}, &SourceError{Err: err}
	}

	ix := 0
	for i, column := range table.Header {
		if column == IDColumn {
			ix = i
			break
		}
	}

	s.log.Debug().Int("rows", len(table.Records)).Str("student_id", studentID).Msg("fetched grade table")

	for _, record := range table.Records {
		if record[ix] == studentID {
			return Row{Header: table.Header, Values: record}, nil
		}
	}

	return Row{}, &NotFoundError{StudentID: studentID}
}
