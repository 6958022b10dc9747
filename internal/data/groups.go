package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// GroupsStore reads groups and their memberships.
type GroupsStore struct {
	groups  *mongo.Collection
	members *mongo.Collection
}

// NewGroupsStore returns a GroupsStore over the groups and group_members collections.
func NewGroupsStore(groups, members *mongo.Collection) *GroupsStore {
	return &GroupsStore{groups: groups, members: members}
}

// CreateGroup inserts a group with a caller-assigned id (seeding only).
func (g *GroupsStore) CreateGroup(ctx context.Context, group *Group) error {
	now := time.Now().UTC()
	group.CreatedAt, group.UpdatedAt = now, now
	if _, err := g.groups.InsertOne(ctx, group); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// AddGroupMember inserts a membership with a caller-assigned id (seeding only).
func (g *GroupsStore) AddGroupMember(ctx context.Context, member *GroupMember) error {
	member.CreatedAt = time.Now().UTC()
	if _, err := g.members.InsertOne(ctx, member); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetGroup finds a group by id.
func (g *GroupsStore) GetGroup(ctx context.Context, id int64) (*Group, error) {
	var group Group
	err := g.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &group, nil
}

// ListGroupMembers returns every membership of a group.
func (g *GroupsStore) ListGroupMembers(ctx context.Context, groupID int64) ([]*GroupMember, error) {
	cursor, err := g.members.Find(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []*GroupMember
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListUserGroupIDs returns the ids of the groups userID belongs to.
func (g *GroupsStore) ListUserGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	cursor, err := g.members.Find(ctx, bson.M{"member_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []*GroupMember
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.GroupID)
	}
	return ids, nil
}
