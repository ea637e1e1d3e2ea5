package association

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/klangbox/klangbox/internal/domain/tag"
)

var (
	ErrSessionConflict = errors.New("playlist already has an active association session")
	ErrSessionNotFound = errors.New("association session not found")
	ErrSyncFailed      = errors.New("playlist sync failed")
)

// DefaultTimeout is the session window used when the caller passes a
// non-positive timeout.
const DefaultTimeout = 60 * time.Second

// Service owns the session registry and the conflict/override policy.
// Registry and tag mutations are serialized under a single mutex; the
// lock is released before repository and sync I/O.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*Session
	seq      uint64

	tags TagRepository
	sync PlaylistSync // optional, nil disables playlist-side write-through

	now func() time.Time
}

// NewService creates an association service over the given tag
// repository. sync may be nil when no playlist-side write-through is
// wanted.
func NewService(tags TagRepository, sync PlaylistSync) *Service {
	return &Service{
		sessions: make(map[string]*Session),
		tags:     tags,
		sync:     sync,
		now:      time.Now,
	}
}

// StartSession begins a new association session for a playlist.
// Returns tag.ErrEmptyPlaylistID for a blank playlist id and
// ErrSessionConflict when the playlist already has an active session.
// Sessions for different playlists are independent.
func (s *Service) StartSession(playlistID string, timeout time.Duration, override bool) (*Session, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, errors.Wrap(tag.ErrEmptyPlaylistID, "start session")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, sess := range s.sessions {
		if sess.PlaylistID == playlistID && sess.IsActive(now) {
			return nil, errors.Wrapf(ErrSessionConflict, "playlist %s", playlistID)
		}
	}

	s.seq++
	sess := &Session{
		ID:           uuid.New().String(),
		PlaylistID:   playlistID,
		State:        StateListening,
		StartedAt:    now,
		Timeout:      timeout,
		OverrideMode: override,
		seq:          s.seq,
	}
	s.sessions[sess.ID] = sess

	zlog.Info().Msgf("association session started: session_id=%s playlist_id=%s timeout=%s override=%t",
		sess.ID, playlistID, timeout, override)
	return sess, nil
}

// ProcessDetection handles one tag detection. The tag's detection
// history is always recorded, independent of the association outcome.
// When sessionID is empty the oldest currently-active session is
// targeted; when given, only that session is considered (and ignored
// if it is not active).
func (s *Service) ProcessDetection(ctx context.Context, id tag.Identifier, sessionID string) DetectionResult {
	// Detection history is written before the session decision and
	// outside the registry lock.
	t, recErr := s.recordDetection(ctx, id)

	s.mu.Lock()
	sess := s.targetLocked(sessionID)
	if sess == nil {
		s.mu.Unlock()
		if recErr != nil {
			zlog.Error().Msgf("failed to record detection: uid=%s err=%v", id, recErr)
			return DetectionResult{Action: ActionError, TagID: id.UID(), NoActiveSessions: true, ErrorMessage: recErr.Error()}
		}
		zlog.Debug().Msgf("tag detected with no active session: uid=%s", id)
		return DetectionResult{Action: ActionTagDetected, TagID: id.UID(), NoActiveSessions: true}
	}

	sess.DetectedTag = id
	if recErr != nil {
		sess.State = StateError
		sess.ErrorMessage = recErr.Error()
		res := DetectionResult{Action: ActionError, TagID: id.UID(), SessionID: sess.ID, PlaylistID: sess.PlaylistID, ErrorMessage: recErr.Error()}
		s.mu.Unlock()
		zlog.Error().Msgf("detection processing failed: session_id=%s uid=%s err=%v", res.SessionID, id, recErr)
		return res
	}

	if t.IsAssociated() && !t.IsAssociatedWith(sess.PlaylistID) && !sess.OverrideMode {
		sess.State = StateDuplicate
		sess.ConflictPlaylistID = t.AssociatedPlaylistID
		res := DetectionResult{
			Action:             ActionDuplicate,
			TagID:              id.UID(),
			SessionID:          sess.ID,
			PlaylistID:         sess.PlaylistID,
			ExistingPlaylistID: t.AssociatedPlaylistID,
		}
		s.mu.Unlock()
		zlog.Info().Msgf("duplicate association: uid=%s existing_playlist=%s requested_playlist=%s session_id=%s",
			id, res.ExistingPlaylistID, res.PlaylistID, res.SessionID)
		return res
	}

	previous := t.AssociatedPlaylistID
	playlistID := sess.PlaylistID
	sessID := sess.ID
	s.mu.Unlock()

	if err := s.bind(ctx, t, playlistID, previous); err != nil {
		s.finishSession(sessID, StateError, err.Error())
		zlog.Error().Msgf("association failed: session_id=%s uid=%s playlist_id=%s err=%v", sessID, id, playlistID, err)
		return DetectionResult{Action: ActionError, TagID: id.UID(), SessionID: sessID, PlaylistID: playlistID, ErrorMessage: err.Error()}
	}

	s.finishSession(sessID, StateSuccess, "")
	zlog.Info().Msgf("association success: session_id=%s uid=%s playlist_id=%s", sessID, id, playlistID)
	return DetectionResult{Action: ActionSuccess, TagID: id.UID(), SessionID: sessID, PlaylistID: playlistID}
}

// StopSession cancels a session. Returns true when a listening session
// was stopped, (false, ErrSessionNotFound) for an unknown id, and
// (false, nil) when the session is already terminal.
func (s *Service) StopSession(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false, errors.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}
	if sess.State != StateListening {
		return false, nil
	}

	sess.State = StateStopped
	zlog.Info().Msgf("association session stopped: session_id=%s playlist_id=%s", sess.ID, sess.PlaylistID)
	return true, nil
}

// CleanupExpired transitions every expired listening session to
// timeout and returns how many were cleaned. Safe to call
// concurrently with detection processing.
func (s *Service) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for _, sess := range s.sessions {
		if sess.State == StateListening && sess.IsExpired(now) {
			sess.State = StateTimeout
			count++
			zlog.Info().Msgf("association session timed out: session_id=%s playlist_id=%s", sess.ID, sess.PlaylistID)
		}
	}
	return count
}

// ActiveSessions returns the sessions that are currently active,
// oldest first. Expiry is checked live here, not just in the sweep.
func (s *Service) ActiveSessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var active []*Session
	for _, sess := range s.sessions {
		if sess.IsActive(now) {
			active = append(active, sess)
		}
	}
	sortSessions(active)
	return active
}

// GetSession returns a session by id, terminal or not. Terminal
// sessions stay retrievable until process restart.
func (s *Service) GetSession(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}
	return sess, nil
}

// DissociateTag clears a tag's playlist association and the
// playlist-side binding. Returns (false, tag.ErrNotFound) for an
// unknown tag and (false, nil) when the tag has no association.
func (s *Service) DissociateTag(ctx context.Context, id tag.Identifier) (bool, error) {
	t, err := s.tags.GetTag(ctx, id)
	if err != nil {
		return false, errors.Wrapf(err, "load tag %s", id)
	}
	if !t.Dissociate() {
		return false, nil
	}
	if err := s.tags.SaveTag(ctx, t); err != nil {
		return false, errors.Wrapf(err, "save tag %s", id)
	}
	if s.sync != nil {
		if err := s.sync.RemoveNfcTagAssociation(ctx, id.UID()); err != nil {
			return true, errors.Wrapf(ErrSyncFailed, "remove association for tag %s: %v", id, err)
		}
	}
	zlog.Info().Msgf("tag dissociated: uid=%s", id)
	return true, nil
}

// recordDetection loads or creates the tag record and persists the
// detection history.
func (s *Service) recordDetection(ctx context.Context, id tag.Identifier) (*tag.Tag, error) {
	t, err := s.tags.GetTag(ctx, id)
	if errors.Is(err, tag.ErrNotFound) {
		t = tag.New(id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "load tag %s", id)
	}

	t.RecordDetection(s.now())
	if err := s.tags.SaveTag(ctx, t); err != nil {
		return nil, errors.Wrapf(err, "save tag %s", id)
	}
	return t, nil
}

// bind writes the association to the tag repository first, then to the
// playlist side. The tag write always sticks; a sync failure is
// surfaced to the caller so it is reported rather than hidden.
func (s *Service) bind(ctx context.Context, t *tag.Tag, playlistID, previous string) error {
	if err := t.Associate(playlistID); err != nil {
		return err
	}
	if err := s.tags.SaveTag(ctx, t); err != nil {
		return errors.Wrapf(err, "save tag %s", t.Identifier)
	}
	if s.sync == nil {
		return nil
	}
	if previous != "" && previous != playlistID {
		if err := s.sync.RemoveNfcTagAssociation(ctx, t.Identifier.UID()); err != nil {
			return errors.Wrapf(ErrSyncFailed, "clear association on playlist %s: %v", previous, err)
		}
	}
	if err := s.sync.UpdateNfcTagAssociation(ctx, playlistID, t.Identifier.UID()); err != nil {
		return errors.Wrapf(ErrSyncFailed, "update association on playlist %s: %v", playlistID, err)
	}
	return nil
}

// finishSession applies a terminal state after the I/O phase. The
// session may have been stopped or swept while I/O was in flight; a
// terminal state is never overwritten.
func (s *Service) finishSession(sessionID string, state State, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.State != StateListening {
		return
	}
	sess.State = state
	sess.ErrorMessage = errMsg
}

// targetLocked picks the session a detection operates on. Caller
// holds s.mu.
func (s *Service) targetLocked(sessionID string) *Session {
	now := s.now()
	if sessionID != "" {
		sess, ok := s.sessions[sessionID]
		if !ok || !sess.IsActive(now) {
			return nil
		}
		return sess
	}

	var oldest *Session
	for _, sess := range s.sessions {
		if !sess.IsActive(now) {
			continue
		}
		if oldest == nil || sess.seq < oldest.seq {
			oldest = sess
		}
	}
	return oldest
}

// sortSessions orders sessions by registration order.
func sortSessions(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].seq < sessions[j].seq
	})
}
