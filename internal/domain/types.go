package domain

// DataType is the compiler's value type lattice (spec §4.4).
type DataType string

const (
	Boolean   DataType = "Boolean"
	Integer   DataType = "Integer"
	Decimal   DataType = "Decimal"
	Number    DataType = "Number"
	String    DataType = "String"
	Timestamp DataType = "Timestamp"
	Any       DataType = "Any"
)

var numericFamily = map[DataType]bool{
	Integer: true,
	Decimal: true,
	Number:  true,
}

// IsNumeric reports whether t is one of the mutually-compatible numeric
// family members {Integer, Decimal, Number}.
func (t DataType) IsNumeric() bool { return numericFamily[t] }

// Compatible implements the type-compatibility rules of spec §4.4:
// Any is compatible with anything, exact match is always compatible, and
// the numeric family is mutually compatible without a cast.
func Compatible(a, b DataType) bool {
	if a == Any || b == Any {
		return true
	}
	if a == b {
		return true
	}
	return a.IsNumeric() && b.IsNumeric()
}
