// Package memory is an in-process implementation of the repository
// interfaces. It backs the router tests and database.driver=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
)

// Store keeps every table behind a single mutex so multi-table operations
// such as Promote are atomic.
type Store struct {
	mu sync.Mutex

	emails   map[string]model.Role
	patients map[string]*model.Patient
	doctors  map[string]*model.Doctor
	admins   map[string]*model.Admin
	pending  map[string]*model.PendingSignup
	records  map[int64]*model.PatientRecord
	messages []*model.ChatMessage
	outbox   map[uuid.UUID]*model.OutboxEvent
	order    []uuid.UUID

	nextRecordID  int64
	nextMessageID int64
	now           func() time.Time
}

func New() *Store {
	return &Store{
		emails:   make(map[string]model.Role),
		patients: make(map[string]*model.Patient),
		doctors:  make(map[string]*model.Doctor),
		admins:   make(map[string]*model.Admin),
		pending:  make(map[string]*model.PendingSignup),
		records:  make(map[int64]*model.PatientRecord),
		outbox:   make(map[uuid.UUID]*model.OutboxEvent),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Repositories returns the store wired as a repository.Store.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Accounts: &accountRepository{s},
		Pending:  &pendingRepository{s},
		Records:  &recordRepository{s},
		Chat:     &chatRepository{s},
		Outbox:   &outboxRepository{s},
		Health:   s,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// accounts

type accountRepository struct{ s *Store }

func (r *accountRepository) EmailRole(ctx context.Context, email string) (model.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	role, ok := r.s.emails[email]
	if !ok {
		return "", repository.ErrNotFound
	}
	return role, nil
}

func (r *accountRepository) FindCredential(ctx context.Context, role model.Role, email string) (*model.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	switch role {
	case model.RolePatient:
		if p, ok := r.s.patients[email]; ok {
			return &model.Credential{Email: p.Email, Name: p.Name, PasswordHash: p.PasswordHash, Role: role}, nil
		}
	case model.RoleDoctor:
		if d, ok := r.s.doctors[email]; ok {
			approved := d.Approved
			return &model.Credential{Email: d.Email, Name: d.Name, PasswordHash: d.PasswordHash, Role: role, Approved: &approved}, nil
		}
	case model.RoleAdmin:
		if a, ok := r.s.admins[email]; ok {
			return &model.Credential{Email: a.Email, Name: a.Name, PasswordHash: a.PasswordHash, Role: role}, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *accountRepository) GetPatient(ctx context.Context, email string) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.patients[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPtr(p), nil
}

func (r *accountRepository) GetDoctor(ctx context.Context, email string) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.doctors[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPtr(d), nil
}

func (r *accountRepository) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*model.Patient, 0, len(r.s.patients))
	for _, p := range r.s.patients {
		out = append(out, copyPtr(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r *accountRepository) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*model.Doctor, 0, len(r.s.doctors))
	for _, d := range r.s.doctors {
		out = append(out, copyPtr(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r *accountRepository) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.emails[admin.Email]; ok {
		return repository.ErrEmailTaken
	}
	a := copyPtr(admin)
	a.CreatedAt = r.s.now()
	r.s.admins[a.Email] = a
	r.s.emails[a.Email] = model.RoleAdmin
	return nil
}

func (r *accountRepository) IsDoctorApproved(ctx context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.doctors[email]
	if !ok {
		return false, repository.ErrNotFound
	}
	return d.Approved, nil
}

func (r *accountRepository) SetDoctorApproved(ctx context.Context, email string, approved bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.doctors[email]
	if !ok {
		return repository.ErrNotFound
	}
	d.Approved = approved
	return nil
}

func (r *accountRepository) DeleteDoctor(ctx context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.doctors[email]; !ok {
		return repository.ErrNotFound
	}
	for _, rec := range r.s.records {
		if rec.DoctorEmail == email {
			return repository.ErrHasRecords
		}
	}
	delete(r.s.doctors, email)
	delete(r.s.emails, email)
	return nil
}

func (r *accountRepository) UpdateDoctorProfile(ctx context.Context, email string, u model.DoctorProfileUpdate) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.doctors[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&d.Name, u.Name)
	set(&d.Phone, u.Phone)
	set(&d.Country, u.Country)
	set(&d.City, u.City)
	set(&d.Hospital, u.Hospital)
	set(&d.University, u.University)
	if u.About != nil {
		d.About = copyPtr(u.About)
	}
	if u.ProfileImage != nil {
		d.ProfileImage = copyPtr(u.ProfileImage)
	}
	return copyPtr(d), nil
}

// pending signups

type pendingRepository struct{ s *Store }

func (r *pendingRepository) Create(ctx context.Context, p *model.PendingSignup) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.emails[p.Email]; ok {
		return repository.ErrEmailTaken
	}
	if _, ok := r.s.pending[p.Email]; ok {
		return repository.ErrAlreadyExists
	}
	row := copyPtr(p)
	row.CreatedAt = r.s.now()
	r.s.pending[p.Email] = row
	return nil
}

func (r *pendingRepository) Get(ctx context.Context, email string) (*model.PendingSignup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.pending[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPtr(p), nil
}

func (r *pendingRepository) UpdateCode(ctx context.Context, email, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.pending[email]
	if !ok {
		return repository.ErrNotFound
	}
	p.ConfirmationCode = code
	return nil
}

func (r *pendingRepository) Delete(ctx context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.pending, email)
	return nil
}

func (r *pendingRepository) Promote(ctx context.Context, email, code string) (*model.PendingSignup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.pending[email]
	if !ok || p.ConfirmationCode != code {
		return nil, repository.ErrNotFound
	}
	if _, taken := r.s.emails[email]; taken {
		delete(r.s.pending, email)
		return copyPtr(p), repository.ErrEmailTaken
	}

	now := r.s.now()
	switch p.Role {
	case model.RolePatient:
		r.s.patients[email] = &model.Patient{
			Email: p.Email, Name: p.Name, PasswordHash: p.PasswordHash, Verified: true, CreatedAt: now,
		}
	case model.RoleDoctor:
		f := p.DoctorFields()
		r.s.doctors[email] = &model.Doctor{
			Email: p.Email, Name: p.Name, PasswordHash: p.PasswordHash,
			Phone: f.Phone, Country: f.Country, City: f.City, Hospital: f.Hospital, University: f.University,
			CreatedAt: now,
		}
	default:
		return nil, repository.ErrNotFound
	}
	r.s.emails[email] = p.Role
	delete(r.s.pending, email)
	return copyPtr(p), nil
}

// records

type recordRepository struct{ s *Store }

func (r *recordRepository) Create(ctx context.Context, rec model.NewRecord) (*model.PatientRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextRecordID++
	row := &model.PatientRecord{
		ID:          r.s.nextRecordID,
		Name:        rec.Name,
		Email:       rec.Email,
		Age:         copyPtr(rec.Age),
		CreatedAt:   r.s.now(),
		DoctorEmail: rec.DoctorEmail,
	}
	r.s.records[row.ID] = row
	return copyPtr(row), nil
}

func (r *recordRepository) GetForDoctor(ctx context.Context, doctorEmail string, id int64) (*model.PatientRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.records[id]
	if !ok || rec.DoctorEmail != doctorEmail {
		return nil, repository.ErrNotFound
	}
	return copyPtr(rec), nil
}

func (r *recordRepository) GetForPatient(ctx context.Context, patientEmail string, id int64) (*model.PatientRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.records[id]
	if !ok || rec.Email != patientEmail {
		return nil, repository.ErrNotFound
	}
	return copyPtr(rec), nil
}

func (r *recordRepository) list(match func(*model.PatientRecord) bool) []*model.PatientRecord {
	out := make([]*model.PatientRecord, 0)
	for _, rec := range r.s.records {
		if match(rec) {
			out = append(out, copyPtr(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *recordRepository) ListByDoctor(ctx context.Context, doctorEmail string) ([]*model.PatientRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(rec *model.PatientRecord) bool { return rec.DoctorEmail == doctorEmail }), nil
}

func (r *recordRepository) ListByPatient(ctx context.Context, patientEmail string) ([]*model.PatientRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(rec *model.PatientRecord) bool { return rec.Email == patientEmail }), nil
}

// owned runs fn on the record when doctorEmail owns it, mirroring
// UPDATE ... WHERE id = $1 AND doctor_email = $2.
func (r *recordRepository) owned(doctorEmail string, id int64, fn func(*model.PatientRecord)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.records[id]
	if !ok || rec.DoctorEmail != doctorEmail {
		return repository.ErrNotFound
	}
	fn(rec)
	return nil
}

func (r *recordRepository) UpdateScanResult(ctx context.Context, doctorEmail string, id int64, scanResult string) error {
	return r.owned(doctorEmail, id, func(rec *model.PatientRecord) {
		rec.ScanResult = &scanResult
	})
}

func (r *recordRepository) UpdateScan(ctx context.Context, doctorEmail string, id int64, scan model.ScanUpdate) error {
	return r.owned(doctorEmail, id, func(rec *model.PatientRecord) {
		result := scan.ScanResult
		rec.ScanResult = &result
		rec.ProcessedImage = copyPtr(scan.ProcessedImage)
		rec.SegmentationMask = copyPtr(scan.SegmentationMask)
	})
}

func (r *recordRepository) UpdateReport(ctx context.Context, doctorEmail string, id int64, report string) error {
	return r.owned(doctorEmail, id, func(rec *model.PatientRecord) {
		rec.Report = &report
	})
}

func (r *recordRepository) SetFilePath(ctx context.Context, doctorEmail string, id int64, filePath *string) error {
	return r.owned(doctorEmail, id, func(rec *model.PatientRecord) {
		rec.FilePath = copyPtr(filePath)
	})
}

// chat

type chatRepository struct{ s *Store }

func (r *chatRepository) Save(ctx context.Context, msg *model.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextMessageID++
	msg.ID = r.s.nextMessageID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = r.s.now()
	}
	r.s.messages = append(r.s.messages, copyPtr(msg))
	return nil
}

func (r *chatRepository) History(ctx context.Context, room string, limit int) ([]*model.ChatMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*model.ChatMessage, 0)
	for _, m := range r.s.messages {
		if m.Room == room {
			out = append(out, copyPtr(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// outbox

type outboxRepository struct{ s *Store }

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := r.s.now()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now
	r.s.outbox[event.ID] = copyPtr(event)
	r.s.order = append(r.s.order, event.ID)
	return nil
}

// ClaimLease is how long a claimed event may stay in processing before
// another claim picks it up again.
const ClaimLease = 5 * time.Minute

func (r *outboxRepository) ClaimBatch(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	batch := make([]*model.OutboxEvent, 0, limit)
	for _, id := range r.s.order {
		if len(batch) == limit {
			break
		}
		e := r.s.outbox[id]
		var due bool
		switch e.Status {
		case model.OutboxStatusPending, model.OutboxStatusRetry:
			due = e.RetryAt == nil || !e.RetryAt.After(now)
		case model.OutboxStatusProcessing:
			due = now.Sub(e.UpdatedAt) > ClaimLease
		}
		if !due {
			continue
		}
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = now
		batch = append(batch, copyPtr(e))
	}
	return batch, nil
}

func (r *outboxRepository) update(id uuid.UUID, fn func(*model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(e)
	e.UpdatedAt = r.s.now()
	return nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		now := r.s.now()
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
		e.ErrorMessage = nil
	})
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusRetry
		e.ErrorMessage = &errMsg
		e.RetryCount++
		e.RetryAt = &retryAt
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.RetryCount++
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	kept := r.s.order[:0]
	for _, id := range r.s.order {
		e := r.s.outbox[id]
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	r.s.order = kept
	return n, nil
}

// Events returns a snapshot of the outbox, oldest first.
func (s *Store) Events() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.OutboxEvent, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyPtr(s.outbox[id]))
	}
	return out
}
