package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/grading"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/ranking"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func bulletinKey(studentID shared.StudentID, year shared.SchoolYear, term shared.Term) string {
	return fmt.Sprintf("%s|%s|%d", studentID, year, term)
}

// fakeRepo is an in-memory bulletin.Repository with per-call error injection.
type fakeRepo struct {
	byID  map[shared.BulletinID]*bulletin.Bulletin
	byKey map[string]*bulletin.Bulletin

	// getOrCreateErrs is a per-student queue of errors returned before the
	// call succeeds, to exercise the retry path.
	getOrCreateErrs map[shared.StudentID][]error

	saveErr         error
	listErr         error
	applyRankingErr error

	rankingCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byID:            make(map[shared.BulletinID]*bulletin.Bulletin),
		byKey:           make(map[string]*bulletin.Bulletin),
		getOrCreateErrs: make(map[shared.StudentID][]error),
	}
}

func (r *fakeRepo) put(b *bulletin.Bulletin) {
	r.byID[b.ID] = b
	r.byKey[bulletinKey(b.StudentID, b.SchoolYear, b.Term)] = b
}

func (r *fakeRepo) Get(ctx context.Context, id shared.BulletinID) (*bulletin.Bulletin, error) {
	b, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrBulletinNotFound
	}
	return b, nil
}

func (r *fakeRepo) GetByKey(ctx context.Context, studentID shared.StudentID, year shared.SchoolYear, term shared.Term) (*bulletin.Bulletin, error) {
	b, ok := r.byKey[bulletinKey(studentID, year, term)]
	if !ok {
		return nil, shared.ErrBulletinNotFound
	}
	return b, nil
}

func (r *fakeRepo) GetOrCreate(ctx context.Context, studentID shared.StudentID, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, createdBy shared.UserID) (*bulletin.Bulletin, bool, error) {
	if errs := r.getOrCreateErrs[studentID]; len(errs) > 0 {
		err := errs[0]
		r.getOrCreateErrs[studentID] = errs[1:]
		return nil, false, err
	}
	if b, ok := r.byKey[bulletinKey(studentID, year, term)]; ok {
		return b, false, nil
	}
	b, err := bulletin.New(studentID, classroomID, year, term, createdBy)
	if err != nil {
		return nil, false, err
	}
	r.put(b)
	return b, true, nil
}

func (r *fakeRepo) Save(ctx context.Context, b *bulletin.Bulletin) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.put(b)
	return nil
}

func (r *fakeRepo) ListByClassroomTerm(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]*bulletin.Bulletin, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*bulletin.Bulletin
	for _, b := range r.byID {
		if b.ClassroomID == classroomID && b.SchoolYear == year && b.Term == term {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeRepo) ApplyRanking(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, updates []bulletin.RankingUpdate) error {
	if r.applyRankingErr != nil {
		return r.applyRankingErr
	}
	r.rankingCalls++
	for _, u := range updates {
		b, ok := r.byID[u.BulletinID]
		if !ok {
			return shared.ErrBulletinNotFound
		}
		b.Rank = u.Rank
		b.ClassroomAverage = u.ClassroomAverage
		size := u.ClassroomSize
		b.ClassroomSize = &size
	}
	return nil
}

var _ bulletin.Repository = (*fakeRepo)(nil)

// fakeScoreStore is an in-memory bulletin.ScoreStore.
type fakeScoreStore struct {
	classrooms []bulletin.Classroom
	students   map[shared.ClassroomID][]bulletin.Student
	subjects   map[shared.ClassroomID][]bulletin.Subject
	scores     map[shared.StudentID][]grading.ScoredEvaluation
	missing    map[shared.StudentID][]bulletin.MissingEvaluation

	scoresErr map[shared.StudentID]error
}

func newFakeScoreStore() *fakeScoreStore {
	return &fakeScoreStore{
		students:  make(map[shared.ClassroomID][]bulletin.Student),
		subjects:  make(map[shared.ClassroomID][]bulletin.Subject),
		scores:    make(map[shared.StudentID][]grading.ScoredEvaluation),
		missing:   make(map[shared.StudentID][]bulletin.MissingEvaluation),
		scoresErr: make(map[shared.StudentID]error),
	}
}

func (s *fakeScoreStore) Scores(ctx context.Context, studentID shared.StudentID, year shared.SchoolYear, term shared.Term) ([]grading.ScoredEvaluation, error) {
	if err := s.scoresErr[studentID]; err != nil {
		return nil, err
	}
	return s.scores[studentID], nil
}

func (s *fakeScoreStore) ClassroomSubjects(ctx context.Context, classroomID shared.ClassroomID) ([]bulletin.Subject, error) {
	return s.subjects[classroomID], nil
}

func (s *fakeScoreStore) Student(ctx context.Context, studentID shared.StudentID) (bulletin.Student, error) {
	for _, students := range s.students {
		for _, st := range students {
			if st.ID == studentID {
				return st, nil
			}
		}
	}
	return bulletin.Student{}, shared.ErrStudentNotFound
}

func (s *fakeScoreStore) ClassroomStudents(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear) ([]bulletin.Student, error) {
	return s.students[classroomID], nil
}

func (s *fakeScoreStore) Classrooms(ctx context.Context, year shared.SchoolYear, name string) ([]bulletin.Classroom, error) {
	if name == "" {
		return s.classrooms, nil
	}
	var out []bulletin.Classroom
	for _, c := range s.classrooms {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeScoreStore) MissingEvaluations(ctx context.Context, studentID shared.StudentID, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]bulletin.MissingEvaluation, error) {
	return s.missing[studentID], nil
}

var _ bulletin.ScoreStore = (*fakeScoreStore)(nil)

// fakeRankingCache is an in-memory ranking.Cache that records its traffic
// and can fail writes.
type fakeRankingCache struct {
	setErr error

	invalidateCalls int
	setCalls        int
	tables          map[string][]ranking.Entry
}

func newFakeRankingCache() *fakeRankingCache {
	return &fakeRankingCache{tables: make(map[string][]ranking.Entry)}
}

func cacheKey(classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) string {
	return fmt.Sprintf("%s|%s|%d", classroomID, year, term)
}

func (c *fakeRankingCache) GetTable(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]ranking.Entry, error) {
	return c.tables[cacheKey(classroomID, year, term)], nil
}

func (c *fakeRankingCache) SetTable(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, entries []ranking.Entry) error {
	c.setCalls++
	if c.setErr != nil {
		return c.setErr
	}
	c.tables[cacheKey(classroomID, year, term)] = entries
	return nil
}

func (c *fakeRankingCache) Invalidate(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) error {
	c.invalidateCalls++
	delete(c.tables, cacheKey(classroomID, year, term))
	return nil
}

var _ ranking.Cache = (*fakeRankingCache)(nil)

// recordingSink captures every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []shared.Event
}

func (s *recordingSink) Record(ctx context.Context, event shared.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) ofType(eventType shared.EventType) []shared.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []shared.Event
	for _, e := range s.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

var _ shared.AuditSink = (*recordingSink)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// One classroom "6A" with a homeroom teacher, two subjects and three students:
// s1 averages 14/20, s2 averages 9.33/20, s3 has no scored evaluation.
// ══════════════════════════════════════════════════════════════════════════════

const (
	fixtureYear      = "2025-2026"
	fixtureTerm      = 1
	fixtureClassroom = shared.ClassroomID("class-6a")
)

type fixture struct {
	repo   *fakeRepo
	scores *fakeScoreStore
	sink   *recordingSink
}

func scoreOn20(studentID shared.StudentID, subjectID shared.SubjectID, raw string) grading.ScoredEvaluation {
	r := mustDec(raw)
	return grading.ScoredEvaluation{
		StudentID: studentID,
		SubjectID: subjectID,
		Raw:       &r,
		Scale:     mustDec("20"),
		Weight:    mustDec("1"),
	}
}

func newFixture() *fixture {
	homeroom := shared.UserID("u-homeroom")
	scores := newFakeScoreStore()
	scores.classrooms = []bulletin.Classroom{
		{ID: fixtureClassroom, Name: "6A", HomeroomTeacher: &homeroom},
	}
	scores.students[fixtureClassroom] = []bulletin.Student{
		{ID: "s1", DisplayName: "Amina Diallo"},
		{ID: "s2", DisplayName: "Lucas Martin"},
		{ID: "s3", DisplayName: "Nora Benali"},
	}
	scores.subjects[fixtureClassroom] = []bulletin.Subject{
		{ID: "math", Name: "Mathematics", Coefficient: mustDec("2")},
		{ID: "hist", Name: "History", Coefficient: mustDec("1")},
	}
	// s1: math 15, hist 12 -> overall (15*2+12)/3 = 14
	scores.scores["s1"] = []grading.ScoredEvaluation{
		scoreOn20("s1", "math", "15"),
		scoreOn20("s1", "hist", "12"),
	}
	// s2: math 10, hist 8 -> overall (10*2+8)/3 = 9.33...
	scores.scores["s2"] = []grading.ScoredEvaluation{
		scoreOn20("s2", "math", "10"),
		scoreOn20("s2", "hist", "8"),
	}
	// s3: nothing scored.

	return &fixture{
		repo:   newFakeRepo(),
		scores: scores,
		sink:   &recordingSink{},
	}
}
