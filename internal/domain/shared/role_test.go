package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorPredicates(t *testing.T) {
	admin := NewAdminActor("u-admin")
	teacher := NewTeacherActor("u-teacher")
	homeroom := NewHomeroomTeacherActor("u-homeroom", "class-6a")
	student := NewStudentActor("u-student", "s1")
	guardian := NewGuardianActor("u-guardian", "s1", "s2")

	t.Run("admin", func(t *testing.T) {
		assert.True(t, admin.IsAdmin())
		assert.False(t, teacher.IsAdmin())
		assert.False(t, admin.IsHomeroomOf("class-6a"), "admin rights are blanket, not homeroom")
	})

	t.Run("homeroom teacher", func(t *testing.T) {
		assert.True(t, homeroom.IsHomeroomOf("class-6a"))
		assert.False(t, homeroom.IsHomeroomOf("class-6b"))
		assert.False(t, teacher.IsHomeroomOf("class-6a"))
	})

	t.Run("student self", func(t *testing.T) {
		assert.True(t, student.IsSelf("s1"))
		assert.False(t, student.IsSelf("s2"))
		assert.False(t, guardian.IsSelf("s1"))
	})

	t.Run("guardian wards", func(t *testing.T) {
		assert.True(t, guardian.IsGuardianOf("s1"))
		assert.True(t, guardian.IsGuardianOf("s2"))
		assert.False(t, guardian.IsGuardianOf("s3"))
		assert.False(t, student.IsGuardianOf("s1"))
	})
}

func TestRoleKindIsValid(t *testing.T) {
	for _, kind := range []RoleKind{RoleStudent, RoleTeacher, RoleHomeroomTeacher, RoleGuardian, RoleAdmin} {
		assert.True(t, kind.IsValid(), "kind %s", kind)
	}
	assert.False(t, RoleKind("principal").IsValid())
}
