package grouporder

import (
	"time"

	"github.com/google/uuid"
)

// Member is a user's participation in a group order
type Member struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	UserID      uuid.UUID
	DisplayName string
	IsHost      bool
	Status      MemberStatus
	AddressID   *uuid.UUID // only meaningful in member_address delivery mode
	JoinedAt    time.Time
	LeftAt      *time.Time
	UpdatedAt   time.Time
}

func newMember(groupID, userID uuid.UUID, displayName string, isHost bool, now time.Time) Member {
	return Member{
		ID:          uuid.New(),
		GroupID:     groupID,
		UserID:      userID,
		DisplayName: displayName,
		IsHost:      isHost,
		Status:      MemberStatusJoined,
		JoinedAt:    now,
		UpdatedAt:   now,
	}
}

// IsActive reports whether the member has not left
func (m *Member) IsActive() bool {
	return m.Status.IsActive()
}

// HasAddress reports whether a delivery address reference is set
func (m *Member) HasAddress() bool {
	return m.AddressID != nil && *m.AddressID != uuid.Nil
}

func (m *Member) markLeft(now time.Time) {
	m.Status = MemberStatusLeft
	m.LeftAt = &now
	m.UpdatedAt = now
}
