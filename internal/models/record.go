package models

import "time"

// NotAvailable marks a schema field that could not be read from the page
const NotAvailable = "#NA"

// Column names of a PAN record
const (
	FieldPAN                = "PAN"
	FieldOffice             = "Office"
	FieldName               = "Name"
	FieldTelephone          = "Telephone"
	FieldWard               = "Ward"
	FieldStreetName         = "Street Name"
	FieldCityName           = "City Name"
	FieldIncomeTax          = "Income Tax"
	FieldVAT                = "VAT"
	FieldVATFilingPeriod    = "VAT Filing Period"
	FieldReturnVerifiedDate = "Fiscal Year / Return Verified Date"
	FieldNonFiler           = "Non-filer"
	FieldNonFilerSince      = "Non-filer since"
	FieldError              = "Error"
)

// Error markers stored in Record.Error
const (
	ErrorFetchFailed   = "Failed to fetch data"
	ErrorWallExhausted = "Captcha wall retries exhausted"
	ErrorInvalidPAN    = "Invalid PAN format"
)

// SchemaFields is the fixed field set of every record, in output order
var SchemaFields = []string{
	FieldOffice,
	FieldName,
	FieldTelephone,
	FieldWard,
	FieldStreetName,
	FieldCityName,
	FieldIncomeTax,
	FieldVAT,
	FieldVATFilingPeriod,
	FieldReturnVerifiedDate,
	FieldNonFiler,
	FieldNonFilerSince,
}

// Record is the result of one PAN lookup. Fields always holds every
// schema field; unknown values are NotAvailable.
type Record struct {
	PAN        string            `json:"pan" example:"301234567"`
	Fields     map[string]string `json:"fields"`
	Error      string            `json:"error,omitempty" example:"Failed to fetch data"`
	FetchedAt  time.Time         `json:"fetched_at" example:"2024-01-15T10:30:00Z"`
	Cache      bool              `json:"cache" example:"false"`
	DurationMs int64             `json:"duration_ms" example:"2500"`
}

// NewRecord returns a record for pan with every field set to NotAvailable
func NewRecord(pan string) *Record {
	fields := make(map[string]string, len(SchemaFields))
	for _, name := range SchemaFields {
		fields[name] = NotAvailable
	}
	return &Record{PAN: pan, Fields: fields}
}

// NewErrorRecord returns a fully populated record carrying an error marker
func NewErrorRecord(pan, message string) *Record {
	r := NewRecord(pan)
	r.Error = message
	return r
}

// Set stores value under name. An empty cell stays empty; NotAvailable
// is reserved for fields the page did not have.
func (r *Record) Set(name, value string) {
	r.Fields[name] = value
}

// Get returns the value of a column, including PAN and Error
func (r *Record) Get(name string) string {
	switch name {
	case FieldPAN:
		return r.PAN
	case FieldError:
		return r.Error
	}
	if v, ok := r.Fields[name]; ok {
		return v
	}
	return NotAvailable
}

// Failed reports whether the lookup produced an error marker
func (r *Record) Failed() bool {
	return r.Error != ""
}

// Complete reports whether every schema field is present
func (r *Record) Complete() bool {
	for _, name := range SchemaFields {
		if _, ok := r.Fields[name]; !ok {
			return false
		}
	}
	return true
}

// ResultSet is an ordered list of records, one per input PAN
type ResultSet []*Record

// Columns returns the output header: PAN, the schema, then Error when any
// record failed
func (rs ResultSet) Columns() []string {
	cols := append([]string{FieldPAN}, SchemaFields...)
	for _, r := range rs {
		if r.Failed() {
			return append(cols, FieldError)
		}
	}
	return cols
}

// Rows renders every record against Columns
func (rs ResultSet) Rows() [][]string {
	cols := rs.Columns()
	rows := make([][]string, len(rs))
	for i, r := range rs {
		row := make([]string, len(cols))
		for j, col := range cols {
			row[j] = r.Get(col)
		}
		rows[i] = row
	}
	return rows
}

// Summary counts successful and failed records
func (rs ResultSet) Summary() (success, failed int) {
	for _, r := range rs {
		if r.Failed() {
			failed++
		} else {
			success++
		}
	}
	return success, failed
}
