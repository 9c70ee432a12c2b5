package rostersvc

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/user"
)

const sheetName = "Students"

// Roster columns
const (
	colRollNumber    = "Roll Number"
	colFirstName     = "First Name"
	colLastName      = "Last Name"
	colEmail         = "Email"
	colContactNumber = "Contact Number"
	colClassLevel    = "Class Level"
	colClassType     = "Class Type"
)

var (
	exportHeader = []string{colRollNumber, colFirstName, colLastName, colEmail, colContactNumber, colClassLevel, colClassType}
	importHeader = []string{colFirstName, colLastName, colEmail, colContactNumber, colClassLevel, colClassType}

	errInvalidFile = errors.New("invalid spreadsheet")
	errNoSheet     = errors.New("spreadsheet does not contain any sheet")
)

type (
	RowError struct {
		Row   int    `json:"row"`
		Error string `json:"error"`
	}

	ImportResult struct {
		Imported int        `json:"imported"`
		Failed   []RowError `json:"failed"`
	}

	// Service imports and exports student rosters as .xlsx spreadsheets.
	Service struct {
		userSvc   user.Service
		validator *user.Validator
		logger    core.Logger
	}
)

func NewService(userSvc user.Service, validator *user.Validator, logger core.Logger) *Service {
	return &Service{userSvc: userSvc, validator: validator, logger: logger}
}

// Export writes one row per student matching `filter` to w.
func (svc *Service) Export(ctx context.Context, w io.Writer, filter *user.QueryFilter, ordering ...core.DBOrdering) error {
	students, err := svc.userSvc.Query(ctx, user.RoleStudent, filter, ordering...)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err = f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err = f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheetName, 1, 1, style)
	}

	for i, stud := range students {
		row := []interface{}{"", stud.FirstName, stud.LastName, stud.Email, stud.ContactNumber, "", ""}
		if stud.IsStudent() {
			row[0], row[5], row[6] = stud.RollNumber, stud.ClassLevel, stud.ClassType.String()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "locating row")
		}
		if err = f.SetSheetRow(sheetName, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}
	_ = f.SetColWidth(sheetName, "A", "G", 18)

	_, err = f.WriteTo(w)
	return errors.Wrap(err, "writing spreadsheet")
}

// Import enrolls one student per row of the first sheet of the spreadsheet read from r.
// Rows are independent: a failing row is reported and the next one is processed.
func (svc *Service) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	res := ImportResult{Failed: []RowError{}}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return res, core.NewValidationError(errInvalidFile, core.FieldError{Field: "file", Error: errInvalidFile.Error()})
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return res, core.NewValidationError(errNoSheet, core.FieldError{Field: "file", Error: errNoSheet.Error()})
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return res, errors.Wrapf(err, "reading rows of sheet %s", sheet)
	}
	if len(rows) == 0 {
		return res, missingColumnsError(importHeader)
	}

	cols, missing := columnIndexes(rows[0])
	if len(missing) > 0 {
		return res, missingColumnsError(missing)
	}

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		if isBlank(row) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		cell := func(col string) string {
			if idx := cols[col]; idx < len(row) {
				return row[idx]
			}
			return ""
		}
		nu := user.NewUser{
			FirstName:     cell(colFirstName),
			LastName:      cell(colLastName),
			Email:         cell(colEmail),
			ContactNumber: cell(colContactNumber),
			UserType:      string(user.RoleStudent),
			ClassLevel:    parseLevel(cell(colClassLevel)),
			ClassType:     cell(colClassType),
		}
		if err := svc.importRow(ctx, nu); err != nil {
			res.Failed = append(res.Failed, RowError{Row: rowNum, Error: rowErrorMessage(err)})
			continue
		}
		res.Imported++
	}

	svc.logger.Info(fmt.Sprintf("roster import: %d imported, %d failed", res.Imported, len(res.Failed)))
	return res, nil
}

func (svc *Service) importRow(ctx context.Context, nu user.NewUser) error {
	if err := nu.Validate(ctx, svc.validator, svc.userSvc); err != nil {
		return err
	}
	_, err := svc.userSvc.Create(ctx, nu)
	return err
}

// columnIndexes maps the import columns to their index in `header`, matching names case-insensitively.
func columnIndexes(header []string) (map[string]int, []string) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cols := make(map[string]int, len(importHeader))
	var missing []string
	for _, col := range importHeader {
		idx, ok := byName[strings.ToLower(col)]
		if !ok {
			missing = append(missing, col)
			continue
		}
		cols[col] = idx
	}
	return cols, missing
}

func missingColumnsError(cols []string) error {
	err := errors.Errorf("missing columns: %s", strings.Join(cols, ", "))
	return core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
}

func parseLevel(s string) user.FlexInt {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return user.FlexInt(n)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func rowErrorMessage(err error) string {
	var (
		verr *core.ValidationError
		cerr *core.ConflictError
	)
	switch {
	case errors.As(err, &verr) && verr.Code != "":
		return verr.Code + ": " + verr.Error()
	case errors.As(err, &cerr):
		return cerr.Code + ": " + cerr.Error()
	}
	return err.Error()
}
