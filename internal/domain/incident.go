package domain

import "strings"

// Operation is the kind of record mutation that fired the trigger.
type Operation string

// Operations.
const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
)

// ParseOperation normalizes an operation name. "create" is accepted as an
// alias of insert. Unrecognized names are returned lower-cased and fail IsValid.
func ParseOperation(s string) Operation {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	if op == "create" {
		return OperationInsert
	}
	return op
}

// IsValid checks if the operation is supported.
func (o Operation) IsValid() bool {
	return o == OperationInsert || o == OperationUpdate
}

// IsUpdate reports whether the operation modifies an existing record.
func (o Operation) IsUpdate() bool {
	return o == OperationUpdate
}

// Incident field names on the source record.
const (
	FieldShortDescription = "short_description"
	FieldDescription      = "description"
	FieldState            = "state"
	FieldImpact           = "impact"
	FieldBusinessService  = "business_service"
	FieldComments         = "comments"
)
