package shared

// ══════════════════════════════════════════════════════════════════════════════
// ACTOR / ROLE
// ══════════════════════════════════════════════════════════════════════════════

// RoleKind enumerates the possible roles of an actor.
// Role resolution itself is an external collaborator; the engine receives an
// already-resolved Actor value and checks it once per operation instead of
// re-deriving it ad hoc in every method.
type RoleKind string

// Role kinds.
const (
	RoleStudent         RoleKind = "student"
	RoleTeacher         RoleKind = "teacher"
	RoleHomeroomTeacher RoleKind = "homeroom_teacher"
	RoleGuardian        RoleKind = "guardian"
	RoleAdmin           RoleKind = "admin"
)

// IsValid checks that the role kind is one of the known kinds.
func (k RoleKind) IsValid() bool {
	switch k {
	case RoleStudent, RoleTeacher, RoleHomeroomTeacher, RoleGuardian, RoleAdmin:
		return true
	}
	return false
}

// String returns the string representation.
func (k RoleKind) String() string {
	return string(k)
}

// Actor is the resolved identity and role of a caller, as a tagged union:
// the meaning of the payload fields depends on Kind.
//
//   - RoleStudent:         StudentID is the actor's own student record.
//   - RoleTeacher:         no payload; a subject teacher without homeroom rights.
//   - RoleHomeroomTeacher: ClassroomID is the classroom the actor leads.
//   - RoleGuardian:        WardIDs are the students linked to the guardian.
//   - RoleAdmin:           no payload.
type Actor struct {
	UserID      UserID
	Kind        RoleKind
	StudentID   StudentID
	ClassroomID ClassroomID
	WardIDs     []StudentID
}

// NewStudentActor creates a student actor.
func NewStudentActor(userID UserID, studentID StudentID) Actor {
	return Actor{UserID: userID, Kind: RoleStudent, StudentID: studentID}
}

// NewTeacherActor creates a plain subject-teacher actor.
func NewTeacherActor(userID UserID) Actor {
	return Actor{UserID: userID, Kind: RoleTeacher}
}

// NewHomeroomTeacherActor creates a homeroom-teacher actor for one classroom.
func NewHomeroomTeacherActor(userID UserID, classroomID ClassroomID) Actor {
	return Actor{UserID: userID, Kind: RoleHomeroomTeacher, ClassroomID: classroomID}
}

// NewGuardianActor creates a guardian actor linked to the given students.
func NewGuardianActor(userID UserID, wardIDs ...StudentID) Actor {
	return Actor{UserID: userID, Kind: RoleGuardian, WardIDs: wardIDs}
}

// NewAdminActor creates an admin actor.
func NewAdminActor(userID UserID) Actor {
	return Actor{UserID: userID, Kind: RoleAdmin}
}

// IsAdmin returns true for admin actors.
func (a Actor) IsAdmin() bool {
	return a.Kind == RoleAdmin
}

// IsHomeroomOf returns true when the actor is the homeroom teacher of the
// given classroom. Admins are not homeroom teachers; they carry their own
// blanket rights.
func (a Actor) IsHomeroomOf(classroomID ClassroomID) bool {
	return a.Kind == RoleHomeroomTeacher && a.ClassroomID == classroomID
}

// IsSelf returns true when the actor is the student identified by studentID.
func (a Actor) IsSelf(studentID StudentID) bool {
	return a.Kind == RoleStudent && a.StudentID == studentID
}

// IsGuardianOf returns true when the actor is a guardian linked to studentID.
func (a Actor) IsGuardianOf(studentID StudentID) bool {
	if a.Kind != RoleGuardian {
		return false
	}
	for _, id := range a.WardIDs {
		if id == studentID {
			return true
		}
	}
	return false
}
