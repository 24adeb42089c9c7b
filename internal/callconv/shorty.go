package callconv

import (
	"errors"
	"fmt"
)

// Category is the kind of value an argument or return value carries.
type Category byte

const (
	CategoryInvalid Category = iota
	// CategoryInt covers Z, B, C, S and I: 32-bit integer-like values.
	CategoryInt
	// CategoryLong is J.
	CategoryLong
	// CategoryFloat is F.
	CategoryFloat
	// CategoryDouble is D.
	CategoryDouble
	// CategoryReference is L, including the implicit receiver and the jclass
	// of static native methods.
	CategoryReference
	// CategoryPointer is a native pointer that is not a reference, i.e. JNIEnv*.
	CategoryPointer
	// CategoryVoid only appears as a return type.
	CategoryVoid
)

// String implements fmt.Stringer.
func (c Category) String() string {
	switch c {
	case CategoryInt:
		return "int"
	case CategoryLong:
		return "long"
	case CategoryFloat:
		return "float"
	case CategoryDouble:
		return "double"
	case CategoryReference:
		return "reference"
	case CategoryPointer:
		return "pointer"
	case CategoryVoid:
		return "void"
	default:
		return "invalid"
	}
}

// IsFloatOrDouble returns true for F and D.
func (c Category) IsFloatOrDouble() bool { return c == CategoryFloat || c == CategoryDouble }

// IsWide returns true for categories occupying two managed vreg slots.
func (c Category) IsWide() bool { return c == CategoryLong || c == CategoryDouble }

// CategoryOf returns the category of a shorty character.
func CategoryOf(ch byte) Category {
	switch ch {
	case 'Z', 'B', 'C', 'S', 'I':
		return CategoryInt
	case 'J':
		return CategoryLong
	case 'F':
		return CategoryFloat
	case 'D':
		return CategoryDouble
	case 'L':
		return CategoryReference
	case 'V':
		return CategoryVoid
	default:
		return CategoryInvalid
	}
}

// Shorty is a compact method signature: the return type character followed
// by one character per declared argument, e.g. "VLDI".
type Shorty string

// ValidateShorty returns an error unless s is a well formed shorty.
func ValidateShorty(s string) error {
	if len(s) == 0 {
		return errors.New("empty shorty")
	}
	if CategoryOf(s[0]) == CategoryInvalid {
		return fmt.Errorf("invalid return type %q in shorty %q", s[0], s)
	}
	for i := 1; i < len(s); i++ {
		switch CategoryOf(s[i]) {
		case CategoryInvalid, CategoryVoid:
			return fmt.Errorf("invalid argument type %q at %d in shorty %q", s[i], i, s)
		}
	}
	return nil
}

// ReturnType is the first character of the shorty.
func (s Shorty) ReturnType() byte { return s[0] }

// ReturnCategory is the category of the return type.
func (s Shorty) ReturnCategory() Category { return CategoryOf(s[0]) }

// NumArgs is the number of declared arguments, without the implicit receiver.
func (s Shorty) NumArgs() int { return len(s) - 1 }

// ArgCategories returns the categories of the declared arguments in order.
func (s Shorty) ArgCategories() []Category {
	ret := make([]Category, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		ret = append(ret, CategoryOf(s[i]))
	}
	return ret
}

// HasSmallReturnType returns true when the return value needs extension to
// the full register width by the caller: Z, B, C and S.
func (s Shorty) HasSmallReturnType() bool {
	switch s[0] {
	case 'Z', 'B', 'C', 'S':
		return true
	}
	return false
}

// sizeOfReturnValue is the spill size of the return value. Values narrower
// than a word are spilled as a word, references are compressed to 4 bytes.
func (s Shorty) sizeOfReturnValue() int {
	switch CategoryOf(s[0]) {
	case CategoryVoid:
		return 0
	case CategoryLong, CategoryDouble:
		return 8
	default:
		return 4
	}
}
