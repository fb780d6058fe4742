package schema

import "fmt"

// Table describes one synchronizable entity table.
type Table struct {
	// Name is the table name, identical in the mirror and the remote
	// service.
	Name string

	// Keys lists document fields that get expression indexes in the
	// mirror for equality scans (foreign keys and natural lookup keys).
	Keys []string
}

// Tables is the fixed registry the sync core iterates over. Push order
// follows this slice; no table push-depends on another within a cycle, so
// the order only needs to be stable.
var Tables = []Table{
	{Name: "students", Keys: []string{"student_id", "roll_number", "class"}},
	{Name: "teachers", Keys: []string{"teacher_id", "name"}},
	{Name: "staff", Keys: []string{"staff_id", "name"}},
	{Name: "fee_payments", Keys: []string{"student_id", "payment_date"}},
	{Name: "attendance_records", Keys: []string{"student_id", "date"}},
	{Name: "salary_payments", Keys: []string{"teacher_id", "month", "year"}},
	{Name: "staff_salary_payments", Keys: []string{"staff_id", "month", "year"}},
}

// TableByName looks up a registered table.
func TableByName(name string) (Table, error) {
	for _, t := range Tables {
		if t.Name == name {
			return t, nil
		}
	}
	return Table{}, fmt.Errorf("unknown table %q", name)
}

// TableNames returns the registry's table names in push order.
func TableNames() []string {
	names := make([]string, len(Tables))
	for i, t := range Tables {
		names[i] = t.Name
	}
	return names
}
