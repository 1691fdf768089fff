package grouporder

// GroupStatus represents the lifecycle status of a group order
type GroupStatus string

const (
	GroupStatusOpen        GroupStatus = "open"
	GroupStatusLocked      GroupStatus = "locked"
	GroupStatusCheckingOut GroupStatus = "checking_out"
	GroupStatusExpired     GroupStatus = "expired"
	GroupStatusClosed      GroupStatus = "closed"
	GroupStatusDeleted     GroupStatus = "deleted"
)

// IsValid checks if the status is a valid GroupStatus
func (s GroupStatus) IsValid() bool {
	switch s {
	case GroupStatusOpen, GroupStatusLocked, GroupStatusCheckingOut,
		GroupStatusExpired, GroupStatusClosed, GroupStatusDeleted:
		return true
	}
	return false
}

// String returns the string representation of GroupStatus
func (s GroupStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition except delete is possible
func (s GroupStatus) IsTerminal() bool {
	return s == GroupStatusExpired || s == GroupStatusClosed || s == GroupStatusDeleted
}

// CanTransitionTo checks if the status can transition to the target status.
// open and locked may be toggled by the host; everything else moves forward only.
func (s GroupStatus) CanTransitionTo(target GroupStatus) bool {
	switch s {
	case GroupStatusOpen:
		return target == GroupStatusLocked || target == GroupStatusCheckingOut ||
			target == GroupStatusExpired || target == GroupStatusDeleted
	case GroupStatusLocked:
		return target == GroupStatusOpen || target == GroupStatusExpired || target == GroupStatusDeleted
	case GroupStatusCheckingOut:
		return target == GroupStatusClosed || target == GroupStatusOpen
	case GroupStatusExpired, GroupStatusClosed:
		return target == GroupStatusDeleted
	case GroupStatusDeleted:
		return false
	}
	return false
}

// DeliveryMode determines how checkout splits the shared cart into orders
type DeliveryMode string

const (
	// DeliveryModeHostAddress produces a single order shipped to the host
	DeliveryModeHostAddress DeliveryMode = "host_address"
	// DeliveryModeMemberAddress produces one order per member who owns items
	DeliveryModeMemberAddress DeliveryMode = "member_address"
)

// IsValid checks if the delivery mode is known
func (m DeliveryMode) IsValid() bool {
	return m == DeliveryModeHostAddress || m == DeliveryModeMemberAddress
}

// String returns the string representation of DeliveryMode
func (m DeliveryMode) String() string {
	return string(m)
}

// MemberStatus represents a member's participation status
type MemberStatus string

const (
	MemberStatusJoined  MemberStatus = "joined"
	MemberStatusOrdered MemberStatus = "ordered"
	MemberStatusLeft    MemberStatus = "left"
)

// IsActive reports whether the membership counts as active
func (s MemberStatus) IsActive() bool {
	return s == MemberStatusJoined || s == MemberStatusOrdered
}
