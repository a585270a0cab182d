package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/internal/repository"
)

// memStore backs the fake repositories below with plain maps so services
// can be exercised together without a database.
type memStore struct {
	classes      map[string]models.Class
	levels       map[string]models.Level
	sessions     map[string]models.Session
	enrollments  map[string]models.Enrollment
	members      map[string]models.Member
	meetings     map[string]models.AttendanceMeeting
	participants map[string][]models.AttendanceParticipant
	failures     map[string]error
	seq          int
	clock        time.Time
}

func newMemStore() *memStore {
	return &memStore{
		classes:      map[string]models.Class{},
		levels:       map[string]models.Level{},
		sessions:     map[string]models.Session{},
		enrollments:  map[string]models.Enrollment{},
		members:      map[string]models.Member{},
		meetings:     map[string]models.AttendanceMeeting{},
		participants: map[string][]models.AttendanceParticipant{},
		failures:     map[string]error{},
		clock:        time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) fail(op string) error {
	return s.failures[op]
}

func (s *memStore) addMember(id, name string) {
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.org"
	s.members[id] = models.Member{ID: id, FullName: name, Email: &email, Status: "active"}
}

func (s *memStore) addClass(id string, hasLevels bool) models.Class {
	class := models.Class{ID: id, Name: id, Category: models.ClassCategoryDiscipleship, Status: models.ClassStatusActive, HasLevels: hasLevels, CreatedAt: s.tick()}
	s.classes[id] = class
	return class
}

func (s *memStore) addLevel(id, classID string, order int, prerequisite *string) models.Level {
	level := models.Level{ID: id, ClassID: classID, Name: id, OrderNumber: order, PrerequisiteLevelID: prerequisite, CreatedAt: s.tick()}
	s.levels[id] = level
	return level
}

func (s *memStore) addEnrollment(id, memberID, classID string, levelID *string, status models.EnrollmentStatus) {
	s.enrollments[id] = models.Enrollment{ID: id, MemberID: memberID, ClassID: classID, LevelID: levelID, Status: status, EnrollmentDate: s.tick(), CreatedAt: s.clock}
}

func sameLevel(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type fakeClassRepo struct{ st *memStore }

func (r fakeClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	var result []models.Class
	for _, c := range r.st.classes {
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.Search)) {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, len(result), nil
}

func (r fakeClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := r.st.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (r fakeClassRepo) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = r.st.nextID("class")
	}
	class.CreatedAt = r.st.tick()
	r.st.classes[class.ID] = *class
	return nil
}

func (r fakeClassRepo) Update(ctx context.Context, class *models.Class) error {
	existing := r.st.classes[class.ID]
	class.HasLevels = existing.HasLevels
	r.st.classes[class.ID] = *class
	return nil
}

func (r fakeClassRepo) Delete(ctx context.Context, id string) error {
	for sid, session := range r.st.sessions {
		if session.ClassID == id {
			if session.AttendanceMeetingID != nil {
				delete(r.st.meetings, *session.AttendanceMeetingID)
				delete(r.st.participants, *session.AttendanceMeetingID)
			}
			delete(r.st.sessions, sid)
		}
	}
	for lid, level := range r.st.levels {
		if level.ClassID == id {
			delete(r.st.levels, lid)
		}
	}
	for eid, e := range r.st.enrollments {
		if e.ClassID == id {
			delete(r.st.enrollments, eid)
		}
	}
	delete(r.st.classes, id)
	return nil
}

func (r fakeClassRepo) Summary(ctx context.Context, classID string) (*models.ClassSummary, error) {
	summary := &models.ClassSummary{ClassID: classID}
	for _, l := range r.st.levels {
		if l.ClassID == classID {
			summary.LevelCount++
		}
	}
	for _, s := range r.st.sessions {
		if s.ClassID == classID {
			summary.SessionCount++
		}
	}
	members := map[string]struct{}{}
	for _, e := range r.st.enrollments {
		if e.ClassID == classID && e.Status == models.EnrollmentStatusEnrolled {
			members[e.MemberID] = struct{}{}
		}
	}
	summary.EnrolledCount = len(members)
	return summary, nil
}

type fakeLevelRepo struct{ st *memStore }

func (r fakeLevelRepo) ListByClass(ctx context.Context, classID string) ([]models.Level, error) {
	var result []models.Level
	for _, l := range r.st.levels {
		if l.ClassID == classID {
			result = append(result, l)
		}
	}
	sortLevels(result)
	return result, nil
}

func (r fakeLevelRepo) ListDetailsByClass(ctx context.Context, classID string) ([]models.LevelDetail, error) {
	levels, _ := r.ListByClass(ctx, classID)
	result := make([]models.LevelDetail, 0, len(levels))
	for _, l := range levels {
		detail := models.LevelDetail{Level: l}
		if l.PrerequisiteLevelID != nil {
			if p, ok := r.st.levels[*l.PrerequisiteLevelID]; ok {
				name := p.Name
				detail.PrerequisiteName = &name
			}
		}
		for _, s := range r.st.sessions {
			if sameLevel(s.LevelID, &l.ID) {
				detail.SessionCount++
			}
		}
		for _, e := range r.st.enrollments {
			if sameLevel(e.LevelID, &l.ID) && e.Status == models.EnrollmentStatusEnrolled {
				detail.EnrolledCount++
			}
		}
		result = append(result, detail)
	}
	return result, nil
}

func (r fakeLevelRepo) FindByID(ctx context.Context, id string) (*models.Level, error) {
	if l, ok := r.st.levels[id]; ok {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

func (r fakeLevelRepo) Create(ctx context.Context, level *models.Level) error {
	for _, l := range r.st.levels {
		if l.ClassID == level.ClassID && l.OrderNumber == level.OrderNumber {
			return repository.ErrLevelOrderTaken
		}
	}
	if level.ID == "" {
		level.ID = r.st.nextID("level")
	}
	level.CreatedAt = r.st.tick()
	r.st.levels[level.ID] = *level
	return nil
}

func (r fakeLevelRepo) Update(ctx context.Context, level *models.Level) error {
	existing, ok := r.st.levels[level.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Name = level.Name
	existing.Description = level.Description
	existing.PrerequisiteLevelID = level.PrerequisiteLevelID
	r.st.levels[level.ID] = existing
	return nil
}

func (r fakeLevelRepo) Reorder(ctx context.Context, classID, levelID string, newOrder int) error {
	level, ok := r.st.levels[levelID]
	if !ok || level.ClassID != classID {
		return sql.ErrNoRows
	}
	for id, other := range r.st.levels {
		if id != levelID && other.ClassID == classID && other.OrderNumber == newOrder {
			other.OrderNumber = level.OrderNumber
			r.st.levels[id] = other
		}
	}
	level.OrderNumber = newOrder
	r.st.levels[levelID] = level
	return nil
}

func (r fakeLevelRepo) Delete(ctx context.Context, id string) (int64, error) {
	var detached int64
	for lid, l := range r.st.levels {
		if l.PrerequisiteLevelID != nil && *l.PrerequisiteLevelID == id {
			l.PrerequisiteLevelID = nil
			r.st.levels[lid] = l
			detached++
		}
	}
	for sid, s := range r.st.sessions {
		if sameLevel(s.LevelID, &id) {
			if s.AttendanceMeetingID != nil {
				delete(r.st.meetings, *s.AttendanceMeetingID)
			}
			delete(r.st.sessions, sid)
		}
	}
	for eid, e := range r.st.enrollments {
		if sameLevel(e.LevelID, &id) {
			delete(r.st.enrollments, eid)
		}
	}
	delete(r.st.levels, id)
	return detached, nil
}

type fakeSessionRepo struct{ st *memStore }

func (r fakeSessionRepo) list(match func(models.Session) bool) []models.Session {
	var result []models.Session
	for _, s := range r.st.sessions {
		if match(s) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.OrderNumber != b.OrderNumber {
			return a.OrderNumber < b.OrderNumber
		}
		if !a.SessionDate.Equal(b.SessionDate) {
			return a.SessionDate.Before(b.SessionDate)
		}
		return a.StartTime < b.StartTime
	})
	return result
}

func (r fakeSessionRepo) ListByLevel(ctx context.Context, levelID string) ([]models.Session, error) {
	return r.list(func(s models.Session) bool { return sameLevel(s.LevelID, &levelID) }), nil
}

func (r fakeSessionRepo) ListByClass(ctx context.Context, classID string) ([]models.Session, error) {
	return r.list(func(s models.Session) bool { return s.ClassID == classID && s.LevelID == nil }), nil
}

func (r fakeSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := r.st.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (r fakeSessionRepo) MaxOrder(ctx context.Context, kind models.SessionOwnerKind, ownerID string) (int, error) {
	max := 0
	for _, s := range r.st.sessions {
		if s.OwnerKind() == kind && s.OwnerID() == ownerID && s.OrderNumber > max {
			max = s.OrderNumber
		}
	}
	return max, nil
}

func (r fakeSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if err := r.st.fail("session.create"); err != nil {
		return err
	}
	if session.ID == "" {
		session.ID = r.st.nextID("session")
	}
	session.CreatedAt = r.st.tick()
	r.st.sessions[session.ID] = *session
	return nil
}

func (r fakeSessionRepo) Update(ctx context.Context, session *models.Session) error {
	existing, ok := r.st.sessions[session.ID]
	if !ok {
		return sql.ErrNoRows
	}
	session.AttendanceMeetingID = existing.AttendanceMeetingID
	r.st.sessions[session.ID] = *session
	return nil
}

func (r fakeSessionRepo) LinkMeeting(ctx context.Context, sessionID, meetingID string) error {
	if err := r.st.fail("session.link"); err != nil {
		return err
	}
	s, ok := r.st.sessions[sessionID]
	if !ok {
		return fmt.Errorf("link session meeting: %w", sql.ErrNoRows)
	}
	if s.AttendanceMeetingID != nil {
		return repository.ErrMeetingAlreadyLinked
	}
	s.AttendanceMeetingID = &meetingID
	r.st.sessions[sessionID] = s
	return nil
}

func (r fakeSessionRepo) Delete(ctx context.Context, id string) error {
	if err := r.st.fail("session.delete"); err != nil {
		return err
	}
	s, ok := r.st.sessions[id]
	if !ok {
		return sql.ErrNoRows
	}
	if s.AttendanceMeetingID != nil {
		delete(r.st.meetings, *s.AttendanceMeetingID)
		delete(r.st.participants, *s.AttendanceMeetingID)
	}
	delete(r.st.sessions, id)
	return nil
}

type fakeEnrollmentRepo struct{ st *memStore }

func (r fakeEnrollmentRepo) detailOf(e models.Enrollment) models.EnrollmentDetail {
	detail := models.EnrollmentDetail{Enrollment: e}
	if m, ok := r.st.members[e.MemberID]; ok {
		detail.MemberName = m.FullName
		detail.MemberEmail = m.Email
	}
	if c, ok := r.st.classes[e.ClassID]; ok {
		detail.ClassName = c.Name
	}
	if e.LevelID != nil {
		if l, ok := r.st.levels[*e.LevelID]; ok {
			name := l.Name
			detail.LevelName = &name
		}
	}
	return detail
}

func (r fakeEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	var result []models.EnrollmentDetail
	for _, e := range r.st.enrollments {
		if filter.MemberID != "" && e.MemberID != filter.MemberID {
			continue
		}
		if filter.ClassID != "" && e.ClassID != filter.ClassID {
			continue
		}
		if filter.LevelID != "" && !sameLevel(e.LevelID, &filter.LevelID) {
			continue
		}
		if filter.FlatOnly && e.LevelID != nil {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		result = append(result, r.detailOf(e))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MemberName < result[j].MemberName })
	return result, nil
}

func (r fakeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := r.st.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (r fakeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, ok := r.st.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := r.detailOf(e)
	return &detail, nil
}

func (r fakeEnrollmentRepo) activeConflict(memberID, classID string, levelID *string, excludeID string) bool {
	for id, e := range r.st.enrollments {
		if id == excludeID || e.MemberID != memberID || e.Status != models.EnrollmentStatusEnrolled {
			continue
		}
		if levelID != nil && sameLevel(e.LevelID, levelID) {
			return true
		}
		if levelID == nil && e.LevelID == nil && e.ClassID == classID {
			return true
		}
	}
	return false
}

func (r fakeEnrollmentRepo) ExistsActive(ctx context.Context, memberID, classID string, levelID *string, excludeID string) (bool, error) {
	if err := r.st.fail("enrollment.exists"); err != nil {
		return false, err
	}
	return r.activeConflict(memberID, classID, levelID, excludeID), nil
}

func (r fakeEnrollmentRepo) HasCompleted(ctx context.Context, memberID, levelID string) (bool, error) {
	for _, e := range r.st.enrollments {
		if e.MemberID == memberID && sameLevel(e.LevelID, &levelID) && e.Status == models.EnrollmentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeEnrollmentRepo) CountActiveByClass(ctx context.Context, classID, excludeMemberID string) (int, error) {
	members := map[string]struct{}{}
	for _, e := range r.st.enrollments {
		if e.ClassID == classID && e.Status == models.EnrollmentStatusEnrolled && e.MemberID != excludeMemberID {
			members[e.MemberID] = struct{}{}
		}
	}
	return len(members), nil
}

func (r fakeEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if err := r.st.fail("enrollment.create." + enrollment.MemberID); err != nil {
		return err
	}
	if r.activeConflict(enrollment.MemberID, enrollment.ClassID, enrollment.LevelID, "") {
		return repository.ErrActiveEnrollmentExists
	}
	if enrollment.ID == "" {
		enrollment.ID = r.st.nextID("enrollment")
	}
	enrollment.CreatedAt = r.st.tick()
	r.st.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (r fakeEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, completionDate *time.Time) error {
	e, ok := r.st.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	if status == models.EnrollmentStatusEnrolled && r.activeConflict(e.MemberID, e.ClassID, e.LevelID, id) {
		return repository.ErrActiveEnrollmentExists
	}
	e.Status = status
	e.CompletionDate = completionDate
	r.st.enrollments[id] = e
	return nil
}

func (r fakeEnrollmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.st.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.st.enrollments, id)
	return nil
}

type fakeMemberRepo struct{ st *memStore }

func (r fakeMemberRepo) FindByID(ctx context.Context, id string) (*models.Member, error) {
	if m, ok := r.st.members[id]; ok {
		return &m, nil
	}
	return nil, sql.ErrNoRows
}

func (r fakeMemberRepo) FindByIDs(ctx context.Context, ids []string) (map[string]models.Member, error) {
	result := map[string]models.Member{}
	for _, id := range ids {
		if m, ok := r.st.members[id]; ok {
			result[id] = m
		}
	}
	return result, nil
}

func (r fakeMemberRepo) SearchEligible(ctx context.Context, filter models.MemberSearchFilter) ([]models.Member, error) {
	var result []models.Member
	q := strings.ToLower(strings.TrimSpace(filter.Query))
	for _, m := range r.st.members {
		email := ""
		if m.Email != nil {
			email = *m.Email
		}
		if q != "" && !strings.Contains(strings.ToLower(m.FullName), q) && !strings.Contains(email, q) {
			continue
		}
		if filter.ExcludeEnrolled && r.enrolled(m.ID, filter) {
			continue
		}
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r fakeMemberRepo) enrolled(memberID string, filter models.MemberSearchFilter) bool {
	for _, e := range r.st.enrollments {
		if e.MemberID != memberID || e.Status != models.EnrollmentStatusEnrolled {
			continue
		}
		if filter.LevelID != "" && sameLevel(e.LevelID, &filter.LevelID) {
			return true
		}
		if filter.LevelID == "" && e.ClassID == filter.ClassID {
			return true
		}
	}
	return false
}

type fakeAttendanceRepo struct{ st *memStore }

func (r fakeAttendanceRepo) CreateMeeting(ctx context.Context, meeting *models.AttendanceMeeting) error {
	if err := r.st.fail("meeting.create"); err != nil {
		return err
	}
	if meeting.ID == "" {
		meeting.ID = r.st.nextID("meeting")
	}
	meeting.CreatedAt = r.st.tick()
	r.st.meetings[meeting.ID] = *meeting
	return nil
}

func (r fakeAttendanceRepo) FindMeetingByID(ctx context.Context, id string) (*models.AttendanceMeeting, error) {
	if m, ok := r.st.meetings[id]; ok {
		return &m, nil
	}
	return nil, sql.ErrNoRows
}

func (r fakeAttendanceRepo) DeleteMeeting(ctx context.Context, id string) error {
	if err := r.st.fail("meeting.delete"); err != nil {
		return err
	}
	delete(r.st.meetings, id)
	delete(r.st.participants, id)
	return nil
}

func (r fakeAttendanceRepo) ListParticipants(ctx context.Context, meetingID string) ([]models.AttendanceParticipantDetail, error) {
	var result []models.AttendanceParticipantDetail
	for _, p := range r.st.participants[meetingID] {
		result = append(result, models.AttendanceParticipantDetail{AttendanceParticipant: p, MemberName: r.st.members[p.MemberID].FullName})
	}
	return result, nil
}

func (r fakeAttendanceRepo) ReplaceParticipants(ctx context.Context, meetingID string, participants []models.AttendanceParticipant) error {
	stored := make([]models.AttendanceParticipant, 0, len(participants))
	for _, p := range participants {
		if _, ok := r.st.members[p.MemberID]; !ok {
			return &repository.UnknownMemberError{MemberID: p.MemberID}
		}
		p.ID = r.st.nextID("participant")
		p.MeetingID = meetingID
		stored = append(stored, p)
	}
	r.st.participants[meetingID] = stored
	return nil
}

// engine wires every service over one memStore.
type engine struct {
	st          *memStore
	classes     *ClassService
	levels      *LevelService
	sessions    *SessionService
	enrollments *EnrollmentService
	attendance  *AttendanceService
	batch       *BatchEnrollmentService
	exports     *ExportService
}

func newEngine(policy EnrollmentPolicy) *engine {
	st := newMemStore()
	classRepo := fakeClassRepo{st}
	levelRepo := fakeLevelRepo{st}
	sessionRepo := fakeSessionRepo{st}
	enrollmentRepo := fakeEnrollmentRepo{st}
	memberRepo := fakeMemberRepo{st}
	attendanceRepo := fakeAttendanceRepo{st}

	attendance := NewAttendanceService(attendanceRepo, sessionRepo, enrollmentRepo, nil, nil, nil)
	enrollments := NewEnrollmentService(enrollmentRepo, classRepo, levelRepo, memberRepo, policy, nil, nil, nil, nil)
	enrollments.now = func() time.Time { return st.tick() }
	return &engine{
		st:          st,
		classes:     NewClassService(classRepo, levelRepo, sessionRepo, nil, nil, nil),
		levels:      NewLevelService(levelRepo, classRepo, nil, nil, nil),
		sessions:    NewSessionService(sessionRepo, classRepo, levelRepo, memberRepo, attendance, nil, nil, nil, nil),
		enrollments: enrollments,
		attendance:  attendance,
		batch:       NewBatchEnrollmentService(memberRepo, classRepo, levelRepo, enrollments, BatchLimits{SearchDefault: 20, SearchMax: 50, MaxMembers: 10}, nil, nil, nil),
		exports:     NewExportService(attendance, nil, nil, nil),
	}
}

func staffActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff}
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
