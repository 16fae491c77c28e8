package script

// VariableType is the data type of a built-in script variable.
type VariableType int

const (
	TypeInteger VariableType = iota
	TypeBoolean
	TypeString
	TypeStringArray
	TypeDoubleArray
)

// String returns the user-facing name of the type.
func (t VariableType) String() string {
	switch t {
	case TypeInteger:
		return "Integer"
	case TypeBoolean:
		return "Boolean"
	case TypeString:
		return "String"
	case TypeStringArray:
		return "Array of Strings"
	case TypeDoubleArray:
		return "List of Doubles"
	default:
		return "Unknown"
	}
}

// IsArray reports whether values of the type are lists.
func (t VariableType) IsArray() bool {
	return t == TypeStringArray || t == TypeDoubleArray
}

// Access is how a script may use a built-in variable.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessReadWrite
)

// String returns the user-facing name of the access mode.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "Read Only"
	case AccessWrite:
		return "Write"
	case AccessReadWrite:
		return "Read/Write"
	default:
		return "Unknown"
	}
}

// VariableSpec describes one built-in variable exposed to scripts.
type VariableSpec struct {
	Name    string
	Type    VariableType
	Access  Access
	Remarks string
}

// Writable reports whether scripts may assign the variable.
func (v VariableSpec) Writable() bool {
	return v.Access != AccessRead
}
