package core

import (
	"strconv"
	"time"
)

// Customer is one customer record, one CSV row, one table row.
type Customer struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Gender    string
	ContactNo string
	Country   string
	DOB       string // Date text, passed through unparsed
}

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInteger
)

// FieldSpec maps one record attribute to its CSV column and table column.
type FieldSpec struct {
	Name     string    // CSV column name, e.g. "firstName"
	DBColumn string    // Table column name, e.g. "first_name"
	Type     FieldType // Expected data type
	Required bool      // Value must be present and parse
	Get      func(c *Customer) string
	Set      func(c *Customer, raw string) error
}

// CustomerFields is the single ordered column table shared by the decoder,
// encoder and store. Its order is the line format.
var CustomerFields = []FieldSpec{
	{
		Name: "id", DBColumn: "id", Type: FieldInteger, Required: true,
		Get: func(c *Customer) string { return strconv.FormatInt(c.ID, 10) },
		Set: func(c *Customer, raw string) error {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return err
			}
			c.ID = id
			return nil
		},
	},
	textField("firstName", "first_name", func(c *Customer) *string { return &c.FirstName }),
	textField("lastName", "last_name", func(c *Customer) *string { return &c.LastName }),
	textField("email", "email", func(c *Customer) *string { return &c.Email }),
	textField("gender", "gender", func(c *Customer) *string { return &c.Gender }),
	textField("contactNo", "contact_no", func(c *Customer) *string { return &c.ContactNo }),
	textField("country", "country", func(c *Customer) *string { return &c.Country }),
	textField("dob", "dob", func(c *Customer) *string { return &c.DOB }),
}

func textField(name, dbCol string, ref func(*Customer) *string) FieldSpec {
	return FieldSpec{
		Name:     name,
		DBColumn: dbCol,
		Type:     FieldText,
		Get:      func(c *Customer) string { return *ref(c) },
		Set: func(c *Customer, raw string) error {
			*ref(c) = raw
			return nil
		},
	}
}

// CustomerColumns returns the CSV column names in line order.
func CustomerColumns() []string {
	cols := make([]string, len(CustomerFields))
	for i, f := range CustomerFields {
		cols[i] = f.Name
	}
	return cols
}

// CustomerDBColumns returns the table column names in line order.
func CustomerDBColumns() []string {
	cols := make([]string, len(CustomerFields))
	for i, f := range CustomerFields {
		cols[i] = f.DBColumn
	}
	return cols
}

// FieldByName looks up a field spec by CSV column name.
func FieldByName(name string) (FieldSpec, bool) {
	for _, f := range CustomerFields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Values returns the record's field values in line order.
func (c Customer) Values() []string {
	out := make([]string, len(CustomerFields))
	for i, f := range CustomerFields {
		out[i] = f.Get(&c)
	}
	return out
}

// Phase names one engine run within a job.
type Phase string

const (
	PhaseImport Phase = "import-csv-to-db-step"
	PhaseExport Phase = "export-db-to-csv-step"
)

// JobName is the name of the two-phase transfer job.
const JobName = "csv<->db-job"

// State is the engine's position in its run state machine.
type State string

const (
	StateIdle         State = "idle"
	StateReading      State = "reading"
	StateTransforming State = "transforming"
	StateWriting      State = "writing"
	StateCommitting   State = "committing"
	StateDone         State = "done"
	StateAborted      State = "aborted"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Progress is a snapshot of an engine run, delivered after each state change
// that completes a chunk and on termination.
type Progress struct {
	Phase      Phase
	State      State
	Chunk      int   // 1-based index of the current chunk
	Read       int   // Records pulled from the source so far
	Written    int   // Records written into committed chunks
	Commits    int   // Chunks committed
	BytesRead  int64 // Source bytes consumed, when the source can tell
	BytesTotal int64 // Source size in bytes, 0 when unknown
}

// ProgressCallback is called as an engine run advances.
type ProgressCallback func(Progress)

// Report is the final result of one engine run.
type Report struct {
	Phase    Phase
	State    State
	Read     int
	Written  int
	Commits  int
	Duration time.Duration
	Err      error // Non-nil if State is StateAborted
}

// JobReport collects the phase reports of one job run.
type JobReport struct {
	RunID    string
	Phases   []Report
	Duration time.Duration
}

// Succeeded reports whether every phase that ran reached StateDone.
func (r JobReport) Succeeded() bool {
	for _, p := range r.Phases {
		if p.State != StateDone {
			return false
		}
	}
	return len(r.Phases) > 0
}
