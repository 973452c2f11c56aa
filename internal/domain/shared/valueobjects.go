package shared

import (
	"fmt"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFIERS
// ══════════════════════════════════════════════════════════════════════════════

// StudentID represents the internal identifier of a student (UUID string).
type StudentID string

// IsValid checks that the ID is non-empty.
func (s StudentID) IsValid() bool {
	return strings.TrimSpace(string(s)) != ""
}

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// NewStudentID creates a validated StudentID.
func NewStudentID(id string) (StudentID, error) {
	sid := StudentID(strings.TrimSpace(id))
	if !sid.IsValid() {
		return "", NewDomainError("shared", "NewStudentID", ErrInvalidID, "student ID cannot be empty")
	}
	return sid, nil
}

// ClassroomID represents the internal identifier of a classroom.
type ClassroomID string

// IsValid checks that the ID is non-empty.
func (c ClassroomID) IsValid() bool {
	return strings.TrimSpace(string(c)) != ""
}

// String returns the string representation.
func (c ClassroomID) String() string {
	return string(c)
}

// SubjectID represents the internal identifier of a taught subject.
type SubjectID string

// IsValid checks that the ID is non-empty.
func (s SubjectID) IsValid() bool {
	return strings.TrimSpace(string(s)) != ""
}

// String returns the string representation.
func (s SubjectID) String() string {
	return string(s)
}

// BulletinID represents the identifier of a bulletin snapshot.
type BulletinID string

// IsValid checks that the ID is non-empty.
func (b BulletinID) IsValid() bool {
	return strings.TrimSpace(string(b)) != ""
}

// String returns the string representation.
func (b BulletinID) String() string {
	return string(b)
}

// UserID identifies an acting user (teacher, admin, guardian account).
type UserID string

// IsValid checks that the ID is non-empty.
func (u UserID) IsValid() bool {
	return strings.TrimSpace(string(u)) != ""
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHOOL YEAR
// ══════════════════════════════════════════════════════════════════════════════

// SchoolYear represents an academic year in "YYYY-YYYY" form, e.g. "2024-2025".
// The second year must be the first year plus one.
//
// The engine never keeps an ambient "current year"; every operation receives
// the year explicitly.
type SchoolYear string

// IsValid checks the "YYYY-YYYY" format and the consecutive-year rule.
func (y SchoolYear) IsValid() bool {
	parts := strings.Split(string(y), "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
		return false
	}
	first, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	second, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	return second == first+1 && first >= 1900
}

// String returns the string representation.
func (y SchoolYear) String() string {
	return string(y)
}

// StartYear returns the calendar year the school year starts in (0 if invalid).
func (y SchoolYear) StartYear() int {
	parts := strings.Split(string(y), "-")
	if len(parts) != 2 {
		return 0
	}
	first, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return first
}

// NewSchoolYear creates a validated SchoolYear.
func NewSchoolYear(value string) (SchoolYear, error) {
	y := SchoolYear(strings.TrimSpace(value))
	if !y.IsValid() {
		return "", NewDomainError("shared", "NewSchoolYear", ErrInvalidFormat,
			fmt.Sprintf("school year must be \"YYYY-YYYY\" with consecutive years, got %q", value))
	}
	return y, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TERM
// ══════════════════════════════════════════════════════════════════════════════

// Term represents a trimester of the school year: 1, 2 or 3.
type Term int

// Valid terms.
const (
	Term1 Term = 1
	Term2 Term = 2
	Term3 Term = 3
)

// IsValid checks that the term is within 1..3.
func (t Term) IsValid() bool {
	return t >= Term1 && t <= Term3
}

// Int returns the term as an int.
func (t Term) Int() int {
	return int(t)
}

// String returns the string representation, e.g. "T2".
func (t Term) String() string {
	return fmt.Sprintf("T%d", int(t))
}

// NewTerm creates a validated Term.
func NewTerm(value int) (Term, error) {
	t := Term(value)
	if !t.IsValid() {
		return 0, NewDomainError("shared", "NewTerm", ErrValueOutOfRange,
			fmt.Sprintf("term must be 1, 2 or 3, got %d", value))
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RANK
// ══════════════════════════════════════════════════════════════════════════════

// Rank represents the position of a student in a classroom ranking.
// Rank starts at 1 (first place). Zero means unranked.
type Rank int

// IsValid checks that the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// Int returns the rank as an int.
func (r Rank) Int() int {
	return int(r)
}

// IsUnranked returns true when no rank has been assigned.
func (r Rank) IsUnranked() bool {
	return r <= 0
}

// String returns the string representation, e.g. "#3".
func (r Rank) String() string {
	if r.IsUnranked() {
		return "unranked"
	}
	return fmt.Sprintf("#%d", int(r))
}
