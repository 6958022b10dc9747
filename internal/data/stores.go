package data

import "github.com/PaulBabatuyi/ilinkon-realtime/internal/db"

// Stores bundles the Mongo-backed stores so one value satisfies every
// consumer-side store interface.
type Stores struct {
	*UsersStore
	*GroupsStore
	*ThreadsStore
	*MessagesStore
	*TokensStore
}

// NewStores wires every store to its collection on c.
func NewStores(c *db.Client) *Stores {
	seq := NewSequence(c.CountersCollection())
	return &Stores{
		UsersStore:    NewUsersStore(c.UsersCollection()),
		GroupsStore:   NewGroupsStore(c.GroupsCollection(), c.GroupMembersCollection()),
		ThreadsStore:  NewThreadsStore(c.ThreadsCollection(), c.ParticipantsCollection(), seq),
		MessagesStore: NewMessagesStore(c.MessagesCollection(), seq),
		TokensStore:   NewTokensStore(c.TokensCollection(), seq),
	}
}
