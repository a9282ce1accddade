// Package diag implements the SQLSTATE taxonomy and the per-handle
// diagnostics sink read back through SQLGetDiagRec and SQLGetDiagField.
package diag

// State is a five-character SQLSTATE.
type State string

// SQLSTATEs raised by the driver.
const (
	None State = ""

	// Warnings (class 01): the value was still delivered.
	StringDataRightTruncated State = "01004"
	FractionalTruncation     State = "01S07"
	OptionValueChanged       State = "01S02"
	FetchBeforeFirstRowset   State = "01S06"

	NotCursorSpecification State = "07005"
	RestrictedDataType     State = "07006"
	InvalidDescriptorIndex State = "07009"
	IndicatorRequired      State = "22002"
	NumericValueOutOfRange State = "22003"
	IntervalFieldOverflow  State = "22015"
	StringConversionError  State = "22018"
	InvalidCursorState     State = "24000"
	GeneralError           State = "HY000"
	InvalidBufferType      State = "HY003"
	SequenceError          State = "HY010"
	AttributeCannotBeSet   State = "HY011"
	InvalidAttributeValue  State = "HY024"
	InvalidBufferLength    State = "HY090"
	InvalidDescriptorField State = "HY091"
	InvalidAttribute       State = "HY092"
	FetchTypeOutOfRange    State = "HY106"
	OptionalFeature        State = "HYC00"
	TimeoutExpired         State = "HYT00"
	ConnectionFailed       State = "08001"
	ConnectionInUse        State = "08002"
	ConnectionNotOpen      State = "08003"
)

var defaultMessages = map[State]string{
	StringDataRightTruncated: "String data, right truncated",
	FractionalTruncation:     "Fractional truncation",
	OptionValueChanged:       "Option value changed",
	FetchBeforeFirstRowset:   "Attempt to fetch before the result set returned the first rowset",
	NotCursorSpecification:   "Prepared statement not a cursor-specification",
	RestrictedDataType:       "Restricted data type attribute violation",
	InvalidDescriptorIndex:   "Invalid descriptor index",
	IndicatorRequired:        "Indicator variable required but not supplied",
	NumericValueOutOfRange:   "Numeric value out of range",
	IntervalFieldOverflow:    "Interval field overflow",
	StringConversionError:    "Invalid character value for cast specification",
	InvalidCursorState:       "Invalid cursor state",
	GeneralError:             "General error",
	InvalidBufferType:        "Invalid application buffer type",
	SequenceError:            "Function sequence error",
	AttributeCannotBeSet:     "Attribute cannot be set now",
	InvalidAttributeValue:    "Invalid attribute value",
	InvalidDescriptorField:   "Invalid descriptor field identifier",
	InvalidBufferLength:      "Invalid string or buffer length",
	InvalidAttribute:         "Invalid attribute/option identifier",
	FetchTypeOutOfRange:      "Fetch type out of range",
	OptionalFeature:          "Optional feature not implemented",
	TimeoutExpired:           "Timeout expired",
	ConnectionFailed:         "Client unable to establish connection",
	ConnectionInUse:          "Connection name in use",
	ConnectionNotOpen:        "Connection does not exist",
}

// Message returns the standard text for s.
func (s State) Message() string {
	if m, ok := defaultMessages[s]; ok {
		return m
	}
	return string(s)
}

// Class returns the two-character class of s.
func (s State) Class() string {
	if len(s) < 2 {
		return ""
	}
	return string(s[:2])
}

// IsWarning reports whether s is a class 01 warning.
func (s State) IsWarning() bool {
	return s.Class() == "01"
}

// ClassOrigin is the SQL_DIAG_CLASS_ORIGIN of s.
func (s State) ClassOrigin() string {
	if s.Class() == "IM" {
		return "ODBC 3.0"
	}
	return "ISO 9075"
}

// SubclassOrigin is the SQL_DIAG_SUBCLASS_ORIGIN of s. Subclasses defined by
// ODBC rather than ISO are the HY and IM classes and the S-prefixed ones.
func (s State) SubclassOrigin() string {
	switch {
	case s.Class() == "HY", s.Class() == "IM":
		return "ODBC 3.0"
	case len(s) == 5 && s[2] == 'S':
		return "ODBC 3.0"
	default:
		return "ISO 9075"
	}
}
