package normalize

import (
	"fmt"
	"strings"
)

// Field is a canonical customer column.
type Field string

const (
	CustomerID   Field = "customer_id"
	CustomerName Field = "customer_name"
	MobileNumber Field = "mobile_number"
	Region       Field = "region"
)

type fieldSpec struct {
	field    Field
	synonyms []string
	required bool
}

// Order matters: the first synonym present in a header wins.
var customerFields = []fieldSpec{
	{field: CustomerID, synonyms: []string{"customer_id", "cust_id", "id"}, required: true},
	{field: CustomerName, synonyms: []string{"customer_name", "name", "full_name"}, required: true},
	{field: MobileNumber, synonyms: []string{"mobile_number", "mobile", "phone", "msisdn", "contact"}, required: true},
	{field: Region, synonyms: []string{"region", "state", "zone", "area"}},
}

// SchemaError reports a required column or element that the source does not carry.
type SchemaError struct {
	Source string
	Field  string
	Tried  []string
}

func (e *SchemaError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("%s: missing required field %s", e.Source, e.Field)
	}
	return fmt.Sprintf("%s: missing required column %s, tried any of %v", e.Source, e.Field, e.Tried)
}

// FieldMap maps canonical fields to column positions of one header.
type FieldMap map[Field]int

// Index returns the column of f, or -1 for an optional field the header lacks.
func (m FieldMap) Index(f Field) int {
	if i, ok := m[f]; ok {
		return i
	}
	return -1
}

// Resolve matches header names against the accepted synonyms.
func Resolve(header []string) (FieldMap, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}
	fm := make(FieldMap, len(customerFields))
	for _, want := range customerFields {
		found := false
		for _, syn := range want.synonyms {
			if i, ok := pos[syn]; ok {
				fm[want.field] = i
				found = true
				break
			}
		}
		if !found && want.required {
			return nil, &SchemaError{Source: "customers", Field: string(want.field), Tried: want.synonyms}
		}
	}
	return fm, nil
}
