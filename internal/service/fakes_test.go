package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/delivery"
	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/internal/repository"
	"github.com/google/uuid"
)

// In-memory repository fakes. They mirror the compare-and-set semantics of
// the SQL layer so the engines can be tested without a database.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if user.Email != nil && u.Email != nil && *u.Email == *user.Email {
			return repository.ErrDuplicateEmail
		}
		if user.Phone != nil && u.Phone != nil && *u.Phone == *user.Phone {
			return repository.ErrDuplicatePhone
		}
	}
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email != nil && *u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone != nil && *u.Phone == phone {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = &passwordHash
	return nil
}

func (r *fakeUserRepo) SetEmailVerified(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsEmailVerified = true
	return nil
}

func (r *fakeUserRepo) SetPhoneVerified(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsPhoneVerified = true
	return nil
}

type fakeRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newFakeRefreshTokenRepo() *fakeRefreshTokenRepo {
	return &fakeRefreshTokenRepo{tokens: make(map[string]*domain.RefreshToken)}
}

func (r *fakeRefreshTokenRepo) Create(ctx context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	token.CreatedAt = time.Now()
	r.tokens[token.ID] = token
	return nil
}

func (r *fakeRefreshTokenRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRefreshTokenRepo) GetActiveByUserID(ctx context.Context, userID string) ([]*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RefreshToken
	for _, t := range r.tokens {
		if t.UserID == userID && t.IsActive() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeRefreshTokenRepo) Rotate(ctx context.Context, tokenID, successorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenID]
	if !ok {
		return repository.ErrNotFound
	}
	if !t.IsActive() {
		return repository.ErrAlreadyConsumed
	}
	now := time.Now()
	t.Revoked = true
	t.RevokedAt = &now
	t.ReplacedBy = &successorID
	return nil
}

func (r *fakeRefreshTokenRepo) Revoke(ctx context.Context, tokenID string, replacedBy *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Revoked {
		return repository.ErrAlreadyConsumed
	}
	now := time.Now()
	t.Revoked = true
	t.RevokedAt = &now
	if replacedBy != nil {
		t.ReplacedBy = replacedBy
	}
	return nil
}

func (r *fakeRefreshTokenRepo) RevokeAllByUserID(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	now := time.Now()
	for _, t := range r.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (r *fakeRefreshTokenRepo) DeleteRetired(ctx context.Context, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-retention)
	var count int64
	for id, t := range r.tokens {
		if t.ExpiresAt.Before(cutoff) || (t.Revoked && t.RevokedAt != nil && t.RevokedAt.Before(cutoff)) {
			delete(r.tokens, id)
			count++
		}
	}
	return count, nil
}

type fakeOTPRepo struct {
	mu    sync.Mutex
	codes []*domain.OTPCredential
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{}
}

func (r *fakeOTPRepo) Create(ctx context.Context, otp *domain.OTPCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	otp.ID = uuid.New().String()
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = time.Now()
	}
	r.codes = append(r.codes, otp)
	return nil
}

func (r *fakeOTPRepo) CountIssuedSince(ctx context.Context, phone string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, o := range r.codes {
		if o.Phone == phone && o.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeOTPRepo) InvalidateUnusedByPhone(ctx context.Context, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, o := range r.codes {
		if o.Phone == phone && !o.Used {
			o.Used = true
			o.UsedAt = &now
		}
	}
	return nil
}

func (r *fakeOTPRepo) Consume(ctx context.Context, phone, code string) (*domain.OTPCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.codes) - 1; i >= 0; i-- {
		o := r.codes[i]
		if o.Phone == phone && o.Code == code && !o.Used && !o.IsExpired() {
			now := time.Now()
			o.Used = true
			o.UsedAt = &now
			return o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeOTPRepo) RecordFailedAttempt(ctx context.Context, phone string, maxAttempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, o := range r.codes {
		if o.Phone == phone && !o.Used {
			o.Attempts++
			if o.Attempts >= maxAttempts {
				o.Used = true
				o.UsedAt = &now
			}
		}
	}
	return nil
}

func (r *fakeOTPRepo) MarkUsed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.codes {
		if o.ID == id {
			now := time.Now()
			o.Used = true
			o.UsedAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeOTPRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*domain.OTPCredential
	var count int64
	for _, o := range r.codes {
		if o.IsExpired() {
			count++
			continue
		}
		kept = append(kept, o)
	}
	r.codes = kept
	return count, nil
}

type fakeVerificationRepo struct {
	mu     sync.Mutex
	tokens []*domain.EmailVerificationToken
}

func newFakeVerificationRepo() *fakeVerificationRepo {
	return &fakeVerificationRepo{}
}

func (r *fakeVerificationRepo) Create(ctx context.Context, token *domain.EmailVerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.ID = uuid.New().String()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	r.tokens = append(r.tokens, token)
	return nil
}

func (r *fakeVerificationRepo) GetByToken(ctx context.Context, token string) (*domain.EmailVerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeVerificationRepo) GetLatestByUserID(ctx context.Context, userID string) (*domain.EmailVerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.EmailVerificationToken
	for _, t := range r.tokens {
		if t.UserID == userID && (latest == nil || t.CreatedAt.After(latest.CreatedAt)) {
			latest = t
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *fakeVerificationRepo) InvalidateUnusedByUserID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, t := range r.tokens {
		if t.UserID == userID && !t.Used {
			t.Used = true
			t.UsedAt = &now
		}
	}
	return nil
}

func (r *fakeVerificationRepo) Consume(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.ID == id {
			if t.Used {
				return repository.ErrAlreadyConsumed
			}
			now := time.Now()
			t.Used = true
			t.UsedAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeVerificationRepo) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-retention)
	var kept []*domain.EmailVerificationToken
	var count int64
	for _, t := range r.tokens {
		if t.IsExpired() || t.CreatedAt.Before(cutoff) {
			count++
			continue
		}
		kept = append(kept, t)
	}
	r.tokens = kept
	return count, nil
}

type fakeResetRepo struct {
	mu     sync.Mutex
	tokens []*domain.PasswordResetToken
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{}
}

func (r *fakeResetRepo) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.ID = uuid.New().String()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	r.tokens = append(r.tokens, token)
	return nil
}

func (r *fakeResetRepo) GetByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeResetRepo) GetLatestUnusedByUserID(ctx context.Context, userID string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.PasswordResetToken
	for _, t := range r.tokens {
		if t.UserID == userID && !t.Used && (latest == nil || t.CreatedAt.After(latest.CreatedAt)) {
			latest = t
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *fakeResetRepo) InvalidateUnusedByUserID(ctx context.Context, userID, exceptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, t := range r.tokens {
		if t.UserID == userID && !t.Used && t.ID != exceptID {
			t.Used = true
			t.UsedAt = &now
		}
	}
	return nil
}

func (r *fakeResetRepo) Consume(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.ID == id {
			if t.Used {
				return repository.ErrAlreadyConsumed
			}
			now := time.Now()
			t.Used = true
			t.UsedAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeResetRepo) DeleteRetired(ctx context.Context, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-retention)
	var kept []*domain.PasswordResetToken
	var count int64
	for _, t := range r.tokens {
		if t.IsExpired() || t.CreatedAt.Before(cutoff) {
			count++
			continue
		}
		kept = append(kept, t)
	}
	r.tokens = kept
	return count, nil
}

type fakeRoleRepo struct {
	mu          sync.Mutex
	nextID      int64
	assignments []*domain.RoleAssignment
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{}
}

func (r *fakeRoleRepo) Insert(ctx context.Context, assignment *domain.RoleAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.UserID == assignment.UserID && a.RevokedAt == nil {
			return repository.ErrActiveRoleExists
		}
	}
	r.nextID++
	assignment.ID = r.nextID
	assignment.AssignedAt = time.Now()
	r.assignments = append(r.assignments, assignment)
	return nil
}

func (r *fakeRoleRepo) GetActiveByUserID(ctx context.Context, userID string) (*domain.RoleAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.UserID == userID && a.RevokedAt == nil {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRoleRepo) RevokeActive(ctx context.Context, userID string, role domain.Role, revokedBy, notes *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.UserID == userID && a.Role == role && a.RevokedAt == nil {
			now := time.Now()
			a.RevokedAt = &now
			a.RevokedBy = revokedBy
			if notes != nil {
				a.Notes = appendNotes(a.Notes, *notes)
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRoleRepo) RevokeAllActive(ctx context.Context, userID string, revokedBy, notes *string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	now := time.Now()
	for _, a := range r.assignments {
		if a.UserID == userID && a.RevokedAt == nil {
			a.RevokedAt = &now
			a.RevokedBy = revokedBy
			if notes != nil {
				a.Notes = appendNotes(a.Notes, *notes)
			}
			count++
		}
	}
	return count, nil
}

func (r *fakeRoleRepo) HistoryByUserID(ctx context.Context, userID string) ([]*domain.RoleAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RoleAssignment
	for i := len(r.assignments) - 1; i >= 0; i-- {
		if r.assignments[i].UserID == userID {
			out = append(out, r.assignments[i])
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) ActiveUserIDsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, a := range r.assignments {
		if a.Role == role && a.RevokedAt == nil {
			out = append(out, a.UserID)
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) CountActiveByRole(ctx context.Context) (map[domain.Role]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.Role]int)
	for _, a := range r.assignments {
		if a.RevokedAt == nil {
			counts[a.Role]++
		}
	}
	return counts, nil
}

func appendNotes(existing *string, note string) *string {
	if existing == nil {
		return &note
	}
	combined := *existing + "\n" + note
	return &combined
}

type sentSMS struct {
	Phone string
	Body  string
}

type fakeSMSSender struct {
	mu   sync.Mutex
	sent []sentSMS
	fail bool
}

func (s *fakeSMSSender) SendSMS(ctx context.Context, phone, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("sms gateway unavailable")
	}
	s.sent = append(s.sent, sentSMS{Phone: phone, Body: body})
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []delivery.EmailMessage
	fail bool
}

func (m *fakeMailer) SendEmail(ctx context.Context, msg delivery.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("mail gateway unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}
