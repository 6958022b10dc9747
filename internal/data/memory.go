package data

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory implementation of every store
// method. It enforces the same unique constraints as the Mongo indexes and is
// used by tests and by STORE_DRIVER=memory for local runs.
type MemoryStore struct {
	mu sync.RWMutex

	users        map[int64]*User
	groups       map[int64]*Group
	members      map[int64]*GroupMember
	threads      map[int64]*MessageThread
	participants map[int64]*MessageThreadParticipant
	messages     map[int64]*Message
	tokens       map[int64]*NotificationToken

	groupIndex  map[int64]int64  // group id -> thread id
	directIndex map[string]int64 // direct key -> thread id
	tokenIndex  map[string]int64 // token value -> token id

	seq map[string]int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[int64]*User),
		groups:       make(map[int64]*Group),
		members:      make(map[int64]*GroupMember),
		threads:      make(map[int64]*MessageThread),
		participants: make(map[int64]*MessageThreadParticipant),
		messages:     make(map[int64]*Message),
		tokens:       make(map[int64]*NotificationToken),
		groupIndex:   make(map[int64]int64),
		directIndex:  make(map[string]int64),
		tokenIndex:   make(map[string]int64),
		seq:          make(map[string]int64),
	}
}

func (s *MemoryStore) next(name string) int64 {
	s.seq[name]++
	return s.seq[name]
}

// CreateUser stores a user with a caller-assigned id.
func (s *MemoryStore) CreateUser(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUser returns a user by id.
func (s *MemoryStore) GetUser(ctx context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// CreateGroup stores a group with a caller-assigned id.
func (s *MemoryStore) CreateGroup(ctx context.Context, group *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[group.ID]; ok {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	group.CreatedAt, group.UpdatedAt = now, now
	cp := *group
	s.groups[group.ID] = &cp
	return nil
}

// AddGroupMember stores a membership. A zero id is assigned from the sequence.
func (s *MemoryStore) AddGroupMember(ctx context.Context, member *GroupMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if member.ID == 0 {
		member.ID = s.next("group_members")
	}
	if _, ok := s.members[member.ID]; ok {
		return ErrDuplicate
	}
	member.CreatedAt = time.Now().UTC()
	cp := *member
	s.members[member.ID] = &cp
	return nil
}

// GetGroup returns a group by id.
func (s *MemoryStore) GetGroup(ctx context.Context, id int64) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

// ListGroupMembers returns the memberships of a group ordered by id.
func (s *MemoryStore) ListGroupMembers(ctx context.Context, groupID int64) ([]*GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*GroupMember
	for _, m := range s.members {
		if m.GroupID == groupID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListUserGroupIDs returns the groups userID belongs to.
func (s *MemoryStore) ListUserGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, m := range s.members {
		if m.MemberID == userID {
			ids = append(ids, m.GroupID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// GetThread returns a thread with its participants.
func (s *MemoryStore) GetThread(ctx context.Context, id int64) (*MessageThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threadLocked(id)
}

// FindGroupThread returns the thread bound to groupID.
func (s *MemoryStore) FindGroupThread(ctx context.Context, groupID int64) (*MessageThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.groupIndex[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.threadLocked(id)
}

// FindDirectThread returns the direct thread with the given pair key.
func (s *MemoryStore) FindDirectThread(ctx context.Context, key string) (*MessageThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.directIndex[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s.threadLocked(id)
}

func (s *MemoryStore) threadLocked(id int64) (*MessageThread, error) {
	t, ok := s.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	cp.Participants = s.participantsLocked(func(p *MessageThreadParticipant) bool { return p.ThreadID == id })
	return &cp, nil
}

func (s *MemoryStore) participantsLocked(match func(*MessageThreadParticipant) bool) []*MessageThreadParticipant {
	var out []*MessageThreadParticipant
	for _, p := range s.participants {
		if match(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListParticipations returns every participant record of userID.
func (s *MemoryStore) ListParticipations(ctx context.Context, userID int64) ([]*MessageThreadParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.participantsLocked(func(p *MessageThreadParticipant) bool { return p.ParticipantID == userID }), nil
}

// FindParticipant returns the record binding userID to threadID.
func (s *MemoryStore) FindParticipant(ctx context.Context, threadID, userID int64) (*MessageThreadParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := s.participantsLocked(func(p *MessageThreadParticipant) bool {
		return p.ThreadID == threadID && p.ParticipantID == userID
	})
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

func (s *MemoryStore) checkThreadUniqueLocked(thread *MessageThread) error {
	if thread.GroupID != nil {
		if _, ok := s.groupIndex[*thread.GroupID]; ok {
			return ErrDuplicate
		}
	}
	if thread.DirectKey != "" {
		if _, ok := s.directIndex[thread.DirectKey]; ok {
			return ErrDuplicate
		}
	}
	return nil
}

func (s *MemoryStore) insertThreadLocked(thread *MessageThread) {
	now := time.Now().UTC()
	thread.ID = s.next("message_threads")
	thread.CreatedAt, thread.UpdatedAt = now, now

	cp := *thread
	cp.Participants, cp.Group = nil, nil
	s.threads[thread.ID] = &cp
	if thread.GroupID != nil {
		s.groupIndex[*thread.GroupID] = thread.ID
	}
	if thread.DirectKey != "" {
		s.directIndex[thread.DirectKey] = thread.ID
	}
}

// CreateThread inserts a thread without participants.
func (s *MemoryStore) CreateThread(ctx context.Context, thread *MessageThread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkThreadUniqueLocked(thread); err != nil {
		return err
	}
	s.insertThreadLocked(thread)
	return nil
}

// CreateThreadWithParticipants inserts a thread and its participants atomically.
func (s *MemoryStore) CreateThreadWithParticipants(ctx context.Context, thread *MessageThread, participants []*MessageThreadParticipant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkThreadUniqueLocked(thread); err != nil {
		return err
	}
	s.insertThreadLocked(thread)
	for _, p := range participants {
		p.ID = s.next("message_thread_participants")
		p.ThreadID = thread.ID
		p.CreatedAt = thread.CreatedAt
		cp := *p
		s.participants[p.ID] = &cp
	}
	thread.Participants = participants
	return nil
}

// TouchThread sets the thread's last-activity timestamp.
func (s *MemoryStore) TouchThread(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return ErrNotFound
	}
	t.UpdatedAt = at
	return nil
}

// ListThreadsForUser returns the user's direct threads plus the threads of
// groupIDs, most recently active first.
func (s *MemoryStore) ListThreadsForUser(ctx context.Context, userID int64, groupIDs []int64, skip, limit int64) ([]*MessageThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inGroup := make(map[int64]bool, len(groupIDs))
	for _, id := range groupIDs {
		inGroup[id] = true
	}
	mine := make(map[int64]bool)
	for _, p := range s.participants {
		if p.ParticipantID == userID {
			mine[p.ThreadID] = true
		}
	}

	var out []*MessageThread
	for id, t := range s.threads {
		if mine[id] || (t.GroupID != nil && inGroup[*t.GroupID]) {
			th, _ := s.threadLocked(id)
			out = append(out, th)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if skip >= int64(len(out)) {
		return nil, nil
	}
	out = out[skip:]
	if limit > 0 && limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

// CreateMessage assigns an id and timestamps and stores the message.
func (s *MemoryStore) CreateMessage(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.next("messages")
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.UpdatedAt = msg.CreatedAt
	if msg.Status == "" {
		msg.Status = StatusSent
	}
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

// ListMessages returns the latest limit messages of a thread, oldest first.
func (s *MemoryStore) ListMessages(ctx context.Context, threadID int64, limit int64) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Message
	for _, m := range s.messages {
		if m.ThreadID == threadID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

// CreateToken stores a token; an existing value yields ErrDuplicate.
func (s *MemoryStore) CreateToken(ctx context.Context, token *NotificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokenIndex[token.Token]; ok {
		return ErrDuplicate
	}
	token.ID = s.next("notification_tokens")
	token.CreatedAt = time.Now().UTC()
	cp := *token
	s.tokens[token.ID] = &cp
	s.tokenIndex[token.Token] = token.ID
	return nil
}

// FindToken looks a token up by value.
func (s *MemoryStore) FindToken(ctx context.Context, token string) (*NotificationToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tokenIndex[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.tokens[id]
	return &cp, nil
}

// ListTokensByUsers returns the tokens owned by any of userIDs, ordered by id.
func (s *MemoryStore) ListTokensByUsers(ctx context.Context, userIDs []int64) ([]*NotificationToken, error) {
	owners := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		owners[id] = true
	}
	return s.listTokens(func(t *NotificationToken) bool { return owners[t.UserID] }), nil
}

// ListTokens returns every stored token ordered by id.
func (s *MemoryStore) ListTokens(ctx context.Context) ([]*NotificationToken, error) {
	return s.listTokens(func(*NotificationToken) bool { return true }), nil
}

func (s *MemoryStore) listTokens(match func(*NotificationToken) bool) []*NotificationToken {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*NotificationToken
	for _, t := range s.tokens {
		if match(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteTokens removes tokens by id and returns how many existed.
func (s *MemoryStore) DeleteTokens(ctx context.Context, ids []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		t, ok := s.tokens[id]
		if !ok {
			continue
		}
		delete(s.tokenIndex, t.Token)
		delete(s.tokens, id)
		n++
	}
	return n, nil
}
