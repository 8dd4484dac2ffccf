// Package session issues, validates, refreshes and revokes sessions. The Store holds live sessions
// in memory; the repository holds the durable rows, addressed only by the salted hash of the id.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"session-gate/internal/audit"
	auditdomain "session-gate/internal/audit/domain"
	"session-gate/internal/security"
	"session-gate/internal/session/domain"
	"session-gate/internal/session/repository"
	"session-gate/internal/storage"
	"session-gate/internal/telemetry"
)

const (
	DefaultSessionTTL = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Audit details.
const (
	detailsCreated   = "New session created"
	detailsRefreshed = "Session refreshed with new ID"
	detailsDestroyed = "Session destroyed - user logged out"
	revokePrefix     = "All sessions revoked: "
)

// Reasons recorded on the session.ended metric.
const (
	endExpired = "expired"
	endLogout  = "logout"
	endRevoked = "revoked"
)

// RateLimiter is the per-IP failed attempt counter consulted by Create and Refresh.
type RateLimiter interface {
	IsRateLimited(ip string) bool
	RecordFailedAttempt(ip string)
	ClearFailedAttempts(ip string)
}

// PayloadCipher protects the session payload at rest.
type PayloadCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertextHex string) (string, error)
}

// Config tunes a Manager. Zero values select the defaults.
type Config struct {
	SessionTTL time.Duration
	RefreshTTL time.Duration
	// Hasher defaults to security.NewSessionHasher().
	Hasher  *security.SessionHasher
	Metrics *telemetry.SessionMetrics
	Logger  *zap.Logger
}

// Manager runs the session state machine: absent, active, then expired, revoked or hijacked, then absent.
// Nothing returns to active; Refresh mints a new session.
type Manager struct {
	store   *Store
	repo    repository.Repository
	limiter RateLimiter
	auditor audit.SessionAuditor
	cipher  PayloadCipher
	hasher  *security.SessionHasher
	metrics *telemetry.SessionMetrics
	logger  *zap.Logger

	sessionTTL time.Duration
	refreshTTL time.Duration

	nowF func() time.Time
	// saltF supplies every salt: the stored session salt, the refresh salt and the lookup salt.
	saltF func() (string, error)
}

// NewManager wires a Manager. repo, limiter, auditor and cipher are required.
func NewManager(store *Store, repo repository.Repository, limiter RateLimiter, auditor audit.SessionAuditor, cipher PayloadCipher, cfg Config) *Manager {
	if store == nil {
		store = NewStore()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Hasher == nil {
		cfg.Hasher = security.NewSessionHasher()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		store:      store,
		repo:       repo,
		limiter:    limiter,
		auditor:    auditor,
		cipher:     cipher,
		hasher:     cfg.Hasher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		sessionTTL: cfg.SessionTTL,
		refreshTTL: cfg.RefreshTTL,
		nowF:       time.Now,
		saltF:      security.GenerateSessionSalt,
	}
}

// Store returns the manager's cache.
func (m *Manager) Store() *Store { return m.store }

// ActiveCount returns the number of cached sessions.
func (m *Manager) ActiveCount() int64 { return int64(m.store.Len()) }

// Create issues a new session for userID bound to ip and userAgent. The returned session carries the raw
// session id and refresh token; this is the only place either is exposed.
func (m *Manager) Create(ctx context.Context, userID int64, ip, userAgent string) (*domain.Session, error) {
	if m.limiter.IsRateLimited(ip) {
		m.metrics.RateLimited(ctx)
		return nil, ErrRateLimited
	}

	id, err := security.GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: session id: %v", ErrCrypto, err)
	}
	salt, idHash, err := m.saltAndHash(id)
	if err != nil {
		return nil, err
	}
	refresh, err := security.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token: %v", ErrCrypto, err)
	}
	// The refresh salt is not stored; see Refresh.
	_, refreshHash, err := m.saltAndHash(refresh)
	if err != nil {
		return nil, err
	}

	now := m.nowF().UTC()
	sess := &domain.Session{
		SessionID:        id,
		SessionIDHash:    idHash,
		SessionSalt:      salt,
		UserID:           userID,
		Data:             domain.EmptyData,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastActivity:     now,
		ExpiresAt:        now.Add(m.sessionTTL),
		IPAddress:        ip,
		UserAgent:        userAgent,
		CreatedIP:        ip,
		LastActivityIP:   ip,
		RefreshToken:     refresh,
		RefreshTokenHash: refreshHash,
		RefreshExpiresAt: now.Add(m.refreshTTL),
		Exists:           true,
		IsValid:          true,
	}
	encrypted, err := m.cipher.Encrypt(sess.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt payload: %v", ErrCrypto, err)
	}

	m.store.Put(sess)
	if err := m.repo.Insert(ctx, toRow(sess, encrypted)); err != nil {
		m.logger.Error("session: persist failed", zap.String("session_fp", security.Fingerprint(id)), zap.Error(err))
	}
	m.auditor.LogSessionEvent(ctx, id, userID, auditdomain.ActionCreate, ip, userAgent, detailsCreated)
	m.limiter.ClearFailedAttempts(ip)
	m.metrics.SessionCreated(ctx)

	out := *sess
	return &out, nil
}

// Load returns the live session for id as seen from ip and userAgent, or nil when it is absent,
// expired, revoked or presented from a different ip or user agent. Only crypto failures are errors.
func (m *Manager) Load(ctx context.Context, id, ip, userAgent string) (*domain.Session, error) {
	if id == "" {
		return nil, nil
	}
	now := m.nowF().UTC()

	if cached, ok := m.store.Get(id); ok {
		if !cached.BoundTo(ip, userAgent) {
			m.hijack(ctx, id, ip)
			return nil, nil
		}
		if cached.Expired(now) {
			m.store.Remove(id)
			m.metrics.SessionEnded(ctx, endExpired, cached.Age(now))
			return nil, nil
		}
		return cached, nil
	}

	since := m.store.BeginFill()
	sess, err := m.loadDurable(ctx, id, ip, userAgent, now)
	if !m.store.EndFill(sess, since) {
		return nil, err
	}
	m.auditor.LogSessionEvent(ctx, id, sess.UserID, auditdomain.ActionLoad, ip, userAgent, "")
	return sess, nil
}

// loadDurable rebuilds a live session from its durable row, or returns nil.
func (m *Manager) loadDurable(ctx context.Context, id, ip, userAgent string, now time.Time) (*domain.Session, error) {
	// The lookup hash uses a fresh salt, not the row's stored salt, so a miss matches only when saltF
	// repeats the salt the row was written with.
	_, lookup, err := m.saltAndHash(id)
	if err != nil {
		return nil, err
	}
	row, err := m.repo.FindByHash(ctx, lookup)
	if err != nil {
		m.logger.Warn("session: lookup failed", zap.String("session_fp", security.Fingerprint(id)), zap.Error(err))
		return nil, nil
	}
	if row == nil {
		return nil, nil
	}

	sess := fromRow(row)
	sess.SessionID = id
	sess.Data = m.decrypt(id, row.DataEncrypted)
	if !sess.BoundTo(ip, userAgent) {
		m.hijack(ctx, id, ip)
		return nil, nil
	}
	if sess.Expired(now) {
		return nil, nil
	}
	sess.LastActivity = now
	sess.LastActivityIP = ip
	return sess, nil
}

// Refresh exchanges a live session and its refresh token for a brand-new session. The old session
// stays cached until it expires or is destroyed.
func (m *Manager) Refresh(ctx context.Context, id, refreshToken, ip, userAgent string) (*domain.Session, error) {
	old, err := m.Load(ctx, id, ip, userAgent)
	if err != nil {
		return nil, err
	}
	if old == nil {
		m.limiter.RecordFailedAttempt(ip)
		return nil, ErrInvalidSession
	}

	// Same fresh-salt comparison as the Load lookup.
	_, lookup, err := m.saltAndHash(refreshToken)
	if err != nil {
		return nil, err
	}
	if !security.HashEqual(lookup, old.RefreshTokenHash) {
		m.limiter.RecordFailedAttempt(ip)
		return nil, ErrInvalidRefreshToken
	}
	if old.RefreshExpired(m.nowF().UTC()) {
		return nil, ErrRefreshTokenExpired
	}

	fresh, err := m.Create(ctx, old.UserID, ip, userAgent)
	if err != nil {
		return nil, err
	}
	m.auditor.LogSessionEvent(ctx, id, old.UserID, auditdomain.ActionRefresh, ip, userAgent, detailsRefreshed)
	return fresh, nil
}

// Save writes sess back to the cache and stages its owner, payload and activity columns on the
// durable row. Staged updates go to the request's storage.Pending when ctx carries one. A session that
// is no longer cached was destroyed or revoked and is refused with ErrInvalidSession; validity is never
// written here.
func (m *Manager) Save(ctx context.Context, sess *domain.Session) error {
	if sess == nil || sess.SessionID == "" {
		return ErrInvalidSession
	}
	now := m.nowF().UTC()
	if sess.Data == "" {
		sess.Data = domain.EmptyData
	}
	encrypted, err := m.cipher.Encrypt(sess.Data)
	if err != nil {
		return fmt.Errorf("%w: encrypt payload: %v", ErrCrypto, err)
	}
	sess.UpdatedAt = now
	sess.LastActivity = now
	if !m.store.Replace(sess) {
		return ErrInvalidSession
	}

	pending := m.pending(ctx)
	pending.Stage(storage.Mutation{
		Table:  repository.Table,
		Column: repository.ColSessionIDHash,
		Value:  sess.SessionIDHash,
		Set: map[string]any{
			repository.ColUserID:         sess.UserID,
			repository.ColDataEncrypted:  encrypted,
			repository.ColUpdatedAt:      now,
			repository.ColLastActivity:   now,
			repository.ColLastActivityIP: sess.LastActivityIP,
		},
	})
	if _, err := pending.Commit(ctx, m.repo); err != nil {
		m.logger.Error("session: save failed", zap.String("session_fp", security.Fingerprint(sess.SessionID)), zap.Error(err))
	}
	return nil
}

// Destroy evicts id and marks its durable row invalid. Unknown ids are a no-op.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	cached, wasCached := m.store.Remove(id)

	hash := ""
	if wasCached {
		hash = cached.SessionIDHash
	} else {
		var err error
		if _, hash, err = m.saltAndHash(id); err != nil {
			return err
		}
	}
	row, err := m.repo.FindByHash(ctx, hash)
	if err != nil {
		m.logger.Warn("session: lookup failed", zap.String("session_fp", security.Fingerprint(id)), zap.Error(err))
		return nil
	}
	if row == nil {
		return nil
	}

	pending := m.pending(ctx)
	pending.Stage(storage.Mutation{
		Table:  repository.Table,
		Column: repository.ColSessionIDHash,
		Value:  hash,
		Set:    map[string]any{repository.ColIsValid: false},
	})
	if _, err := pending.Commit(ctx, m.repo); err != nil {
		m.logger.Error("session: invalidate failed", zap.String("session_fp", security.Fingerprint(id)), zap.Error(err))
	}
	// Evict again: a fill that read the row before the commit may have cached it meanwhile.
	m.store.Remove(id)
	m.auditor.LogSessionEvent(ctx, id, row.UserID, auditdomain.ActionLogout, "", "", detailsDestroyed)
	m.metrics.SessionEnded(ctx, endLogout, m.nowF().Sub(row.CreatedAt))
	return nil
}

// RevokeAll evicts every cached session of userID and invalidates all its durable rows in one update.
// It returns the number of durable rows invalidated.
func (m *Manager) RevokeAll(ctx context.Context, userID int64, reason string) int64 {
	removed := m.store.RemoveUser(userID)
	n, err := m.repo.InvalidateUser(ctx, userID)
	if err != nil {
		m.logger.Error("session: revoke failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	removed = append(removed, m.store.RemoveUser(userID)...)
	m.auditor.LogSessionEvent(ctx, "", userID, auditdomain.ActionRevokeAll, "", "", revokePrefix+reason)

	now := m.nowF()
	for i := range removed {
		m.metrics.SessionEnded(ctx, endRevoked, removed[i].Age(now))
	}
	m.logger.Info("session: revoked all",
		zap.Int64("user_id", userID),
		zap.Int("cached", len(removed)),
		zap.Int64("durable", n),
		zap.String("reason", reason),
	)
	return n
}

// SweepExpired evicts cached sessions past expiry and returns how many were removed.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) int {
	removed := m.store.Sweep(now)
	for i := range removed {
		m.metrics.SessionEnded(ctx, endExpired, removed[i].Age(now))
	}
	return len(removed)
}

func (m *Manager) hijack(ctx context.Context, id, ip string) {
	m.auditor.DetectHijackAttempt(ctx, id, ip)
	m.metrics.HijackDetected(ctx)
}

func (m *Manager) saltAndHash(secret string) (salt, hash string, err error) {
	salt, err = m.saltF()
	if err != nil {
		return "", "", fmt.Errorf("%w: salt: %v", ErrCrypto, err)
	}
	hash, err = m.hasher.HashWithSalt(secret, salt)
	if err != nil {
		return "", "", fmt.Errorf("%w: hash: %v", ErrCrypto, err)
	}
	return salt, hash, nil
}

func (m *Manager) decrypt(id, encrypted string) string {
	if encrypted == "" {
		return domain.EmptyData
	}
	data, err := m.cipher.Decrypt(encrypted)
	if err != nil {
		m.logger.Warn("session: payload unreadable, using empty payload",
			zap.String("session_fp", security.Fingerprint(id)), zap.Error(err))
		return domain.EmptyData
	}
	return data
}

func (m *Manager) pending(ctx context.Context) *storage.Pending {
	if p, ok := storage.PendingFrom(ctx); ok {
		return p
	}
	return storage.NewPending()
}

func toRow(s *domain.Session, encrypted string) *repository.Row {
	return &repository.Row{
		SessionIDHash:    s.SessionIDHash,
		SessionSalt:      s.SessionSalt,
		UserID:           s.UserID,
		DataEncrypted:    encrypted,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		ExpiresAt:        s.ExpiresAt,
		IPAddress:        s.IPAddress,
		UserAgent:        s.UserAgent,
		CreatedIP:        s.CreatedIP,
		LastActivity:     s.LastActivity,
		LastActivityIP:   s.LastActivityIP,
		RefreshTokenHash: s.RefreshTokenHash,
		RefreshExpiresAt: s.RefreshExpiresAt,
		IsValid:          s.IsValid,
	}
}

func fromRow(r *repository.Row) *domain.Session {
	return &domain.Session{
		SessionIDHash:    r.SessionIDHash,
		SessionSalt:      r.SessionSalt,
		UserID:           r.UserID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		LastActivity:     r.LastActivity,
		ExpiresAt:        r.ExpiresAt,
		IPAddress:        r.IPAddress,
		UserAgent:        r.UserAgent,
		CreatedIP:        r.CreatedIP,
		LastActivityIP:   r.LastActivityIP,
		RefreshTokenHash: r.RefreshTokenHash,
		RefreshExpiresAt: r.RefreshExpiresAt,
		Exists:           true,
		IsValid:          r.IsValid,
	}
}

