package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"workflow/backend/config"
	"workflow/backend/internal/model"
	"workflow/backend/internal/policy"
	"workflow/backend/internal/repository"
	"workflow/backend/pkg/event"
	"workflow/backend/pkg/redis"
	"workflow/backend/pkg/storage"
)

// ── In-memory database shared by the mock repositories ──

type memDB struct {
	users    map[uint]*model.User
	projects map[uint]*model.Project
	members  []model.ProjectMember
	slots    map[uint][]model.TimeSlot
	nextID   uint
	failWith error // returned by every call when set
}

func newMemDB() *memDB {
	return &memDB{
		users:    make(map[uint]*model.User),
		projects: make(map[uint]*model.Project),
		slots:    make(map[uint][]model.TimeSlot),
	}
}

func (m *memDB) id() uint {
	m.nextID++
	return m.nextID
}

// ── Mock UserRepository ──

type mockUserRepo struct{ db *memDB }

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if m.db.failWith != nil {
		return m.db.failWith
	}
	for _, u := range m.db.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = m.db.id()
	cp := *user
	m.db.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uint) (*model.User, error) {
	if m.db.failWith != nil {
		return nil, m.db.failWith
	}
	if u, ok := m.db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.db.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ExistsByUsername(_ context.Context, username string, excludeID uint) (bool, error) {
	for _, u := range m.db.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	if m.db.failWith != nil {
		return m.db.failWith
	}
	cp := *user
	m.db.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter) ([]model.User, error) {
	var out []model.User
	for _, u := range m.db.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Specialty != "" && u.Specialty != filter.Specialty {
			continue
		}
		if filter.ActiveOnly && !u.IsActive {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUserRepo) ChangeRole(_ context.Context, id uint, from, to model.Role) error {
	if m.db.failWith != nil {
		return m.db.failWith
	}
	u, ok := m.db.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Role = to
	if from == model.RolePM && to != model.RolePM {
		for _, p := range m.db.projects {
			if p.IsManagedBy(id) {
				p.PMUserID = nil
			}
		}
	}
	if from == model.RoleStudent && to != model.RoleStudent {
		kept := m.db.members[:0]
		for _, mem := range m.db.members {
			if mem.UserID != id {
				kept = append(kept, mem)
			}
		}
		m.db.members = kept
	}
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uint) error {
	if _, ok := m.db.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	kept := m.db.members[:0]
	for _, mem := range m.db.members {
		if mem.UserID != id {
			kept = append(kept, mem)
		}
	}
	m.db.members = kept
	for _, p := range m.db.projects {
		if p.IsManagedBy(id) {
			p.PMUserID = nil
		}
	}
	delete(m.db.slots, id)
	delete(m.db.users, id)
	return nil
}

// ── Mock ProjectRepository ──

type mockProjectRepo struct{ db *memDB }

// hydrate emulates the preloads of the real repository.
func (m *mockProjectRepo) hydrate(p *model.Project) model.Project {
	cp := *p
	cp.PMUser = nil
	if p.PMUserID != nil {
		if u, ok := m.db.users[*p.PMUserID]; ok {
			uc := *u
			cp.PMUser = &uc
		}
	}
	cp.Members = nil
	for _, mem := range m.db.members {
		if mem.ProjectID == p.ID {
			mc := mem
			if u, ok := m.db.users[mem.UserID]; ok {
				uc := *u
				mc.User = &uc
			}
			cp.Members = append(cp.Members, mc)
		}
	}
	return cp
}

func (m *mockProjectRepo) Create(_ context.Context, p *model.Project) error {
	if m.db.failWith != nil {
		return m.db.failWith
	}
	_ = p.BeforeSave(nil)
	p.ID = m.db.id()
	cp := *p
	cp.Members = nil
	cp.PMUser = nil
	m.db.projects[p.ID] = &cp
	return nil
}

func (m *mockProjectRepo) GetByID(_ context.Context, id uint) (*model.Project, error) {
	if m.db.failWith != nil {
		return nil, m.db.failWith
	}
	p, ok := m.db.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := m.hydrate(p)
	return &out, nil
}

func (m *mockProjectRepo) Update(_ context.Context, p *model.Project) error {
	if _, ok := m.db.projects[p.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	_ = p.BeforeSave(nil)
	cp := *p
	cp.Members = nil
	cp.PMUser = nil
	m.db.projects[p.ID] = &cp
	return nil
}

func (m *mockProjectRepo) UpdateStatus(_ context.Context, id uint, status model.ProjectStatus) error {
	p, ok := m.db.projects[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Status = status
	return nil
}

func (m *mockProjectRepo) Delete(_ context.Context, id uint) error {
	if _, ok := m.db.projects[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	kept := m.db.members[:0]
	for _, mem := range m.db.members {
		if mem.ProjectID != id {
			kept = append(kept, mem)
		}
	}
	m.db.members = kept
	delete(m.db.projects, id)
	return nil
}

func (m *mockProjectRepo) List(_ context.Context, filter repository.ProjectFilter) ([]model.Project, error) {
	if m.db.failWith != nil {
		return nil, m.db.failWith
	}
	var out []model.Project
	for _, p := range m.db.projects {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.PMUserID != nil && !p.IsManagedBy(*filter.PMUserID) {
			continue
		}
		h := m.hydrate(p)
		if filter.MemberID != nil && !h.HasMember(*filter.MemberID) {
			continue
		}
		out = append(out, h)
	}
	sortByDeadline(out)
	return out, nil
}

func (m *mockProjectRepo) AddMember(_ context.Context, mem *model.ProjectMember) error {
	for _, existing := range m.db.members {
		if existing.ProjectID == mem.ProjectID && existing.UserID == mem.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	mem.ID = m.db.id()
	mem.JoinedAt = time.Now()
	m.db.members = append(m.db.members, *mem)
	return nil
}

func (m *mockProjectRepo) RemoveMember(_ context.Context, projectID, userID uint) (int64, error) {
	var n int64
	kept := m.db.members[:0]
	for _, mem := range m.db.members {
		if mem.ProjectID == projectID && mem.UserID == userID {
			n++
			continue
		}
		kept = append(kept, mem)
	}
	m.db.members = kept
	return n, nil
}

func (m *mockProjectRepo) IsMember(_ context.Context, projectID, userID uint) (bool, error) {
	for _, mem := range m.db.members {
		if mem.ProjectID == projectID && mem.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// ── Mock TimetableRepository ──

type mockTimetableRepo struct {
	db       *memDB
	replaces int
}

func (m *mockTimetableRepo) ListByUser(_ context.Context, userID uint) ([]model.TimeSlot, error) {
	out := append([]model.TimeSlot{}, m.db.slots[userID]...)
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := model.WeekdayIndex(out[i].DayOfWeek), model.WeekdayIndex(out[j].DayOfWeek)
		if wi != wj {
			return wi < wj
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (m *mockTimetableRepo) ReplaceByUser(_ context.Context, userID uint, slots []model.TimeSlot) error {
	if m.db.failWith != nil {
		return m.db.failWith
	}
	m.replaces++
	rows := make([]model.TimeSlot, len(slots))
	for i, s := range slots {
		s.ID = m.db.id()
		s.UserID = userID
		rows[i] = s
	}
	m.db.slots[userID] = rows
	return nil
}

func (m *mockTimetableRepo) DeleteByUser(_ context.Context, userID uint) error {
	delete(m.db.slots, userID)
	return nil
}

// ── Mock TokenBlacklist / PendingUploads ──

type mockBlacklist struct {
	tokens map[string]time.Duration
	err    error
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.tokens[jti] = ttl
	return nil
}

func (m *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := m.tokens[jti]
	return ok, m.err
}

type mockPending struct {
	grants map[string]uint
	err    error
}

func (m *mockPending) PutPendingUpload(_ context.Context, objectName string, userID uint, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.grants[objectName] = userID
	return nil
}

func (m *mockPending) TakePendingUpload(_ context.Context, objectName string) (uint, error) {
	if m.err != nil {
		return 0, m.err
	}
	uid, ok := m.grants[objectName]
	if !ok {
		return 0, redis.ErrNoPendingUpload
	}
	delete(m.grants, objectName)
	return uid, nil
}

// ── Mock ObjectStore ──

type mockStore struct {
	objects    map[string][]byte
	presignErr error
	getErr     error
}

func (m *mockStore) PresignPut(_ context.Context, objectName string, _ time.Duration) (string, error) {
	if m.presignErr != nil {
		return "", m.presignErr
	}
	return "http://store.test/timetables/" + objectName + "?X-Amz-Signature=x", nil
}

func (m *mockStore) Get(_ context.Context, objectName string, maxBytes int64) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[objectName]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	if int64(len(data)) > maxBytes {
		return nil, storage.ErrTooLarge
	}
	return data, nil
}

func (m *mockStore) Put(_ context.Context, _ string, _ io.Reader, _ int64, _ string) error {
	return nil
}

func (m *mockStore) Remove(_ context.Context, objectName string) error {
	delete(m.objects, objectName)
	return nil
}

// ── Fixture ──

var (
	testNow = time.Date(2024, 1, 25, 23, 59, 0, 0, time.UTC)
	testLoc = time.UTC
)

type fixture struct {
	db        *memDB
	repo      *repository.Repository
	users     *mockUserRepo
	projects  *mockProjectRepo
	timetable *mockTimetableRepo
	events    *event.Recorder
	cfg       *config.Config
	logger    *zap.Logger
}

func newFixture() *fixture {
	db := newMemDB()
	f := &fixture{
		db:        db,
		users:     &mockUserRepo{db: db},
		projects:  &mockProjectRepo{db: db},
		timetable: &mockTimetableRepo{db: db},
		events:    &event.Recorder{},
		logger:    zap.NewNop(),
		cfg: &config.Config{
			Auth: config.AuthConfig{
				JWTSecret:  "0123456789abcdef-test",
				TokenTTL:   24 * time.Hour,
				BcryptCost: bcrypt.MinCost,
			},
			Storage:   config.StorageConfig{PresignTTL: 15 * time.Minute},
			Timetable: config.TimetableConfig{MaxFileBytes: 5 << 20, DueSoonDays: 7, Timezone: "UTC"},
		},
	}
	f.repo = &repository.Repository{User: f.users, Project: f.projects, Timetable: f.timetable}
	return f
}

func (f *fixture) clock() Clock { return func() time.Time { return testNow } }

func (f *fixture) addUser(username string, role model.Role) *model.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	u := &model.User{
		CustomID:     model.NewCustomID(),
		FirstName:    strings.ToUpper(username[:1]) + username[1:],
		YearLevel:    "Year 2",
		Specialty:    string(model.SpecialtyBackend),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	_ = f.users.Create(context.Background(), u)
	return u
}

func (f *fixture) addProject(name string, start string, days int, status model.ProjectStatus, pm *model.User) *model.Project {
	d, _ := model.ParseDate(start)
	p := &model.Project{
		ProjectName:     name,
		DifficultyLevel: 3,
		DurationDays:    days,
		Status:          status,
		StartDate:       model.NewDate(d),
	}
	if pm != nil {
		id := pm.ID
		p.PMUserID = &id
	}
	_ = f.projects.Create(context.Background(), p)
	return p
}

func actorOf(u *model.User) policy.Actor {
	return policy.Actor{UserID: u.ID, Role: u.Role}
}

var admin = policy.Actor{UserID: 9999, Role: model.RoleAdmin}
