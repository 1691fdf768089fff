package grouporder

import (
	"fmt"

	"github.com/groupbuy/backend/internal/domain/shared"
)

// Checkout block reasons, carried in DomainError.Reason
const (
	ReasonNotHost              = "NOT_HOST"
	ReasonGroupNotOpen         = "GROUP_NOT_OPEN"
	ReasonEmptyCart            = "EMPTY_CART"
	ReasonAddressMissing       = "ADDRESS_MISSING"
	ReasonPaymentMethodInvalid = "PAYMENT_METHOD_INVALID"
)

var (
	ErrGroupNotFound   = shared.NewDomainError(shared.KindNotFound, "GROUP_NOT_FOUND", "Group order not found")
	ErrMemberNotFound  = shared.NewDomainError(shared.KindNotFound, "MEMBER_NOT_FOUND", "Member not found in group")
	ErrItemNotFound    = shared.NewDomainError(shared.KindNotFound, "ITEM_NOT_FOUND", "Item not found")
	ErrAddressNotFound = shared.NewDomainError(shared.KindNotFound, "ADDRESS_NOT_FOUND", "Address not found for this user")
	ErrProductNotFound = shared.NewDomainError(shared.KindNotFound, "PRODUCT_NOT_FOUND", "Product not found in catalog")
	ErrReceiptNotFound = shared.NewDomainError(shared.KindNotFound, "RECEIPT_NOT_FOUND", "No receipt has been archived for this group")

	ErrNotAuthorized = shared.NewDomainError(shared.KindNotAuthorized, "NOT_AUTHORIZED", "Only the item owner or the host may do this")
	ErrNotHost       = shared.NewDomainError(shared.KindNotAuthorized, "NOT_AUTHORIZED", "Only the host may do this")
	ErrNotAMember    = shared.NewDomainError(shared.KindNotAuthorized, "NOT_A_MEMBER", "User is not an active member of this group")

	ErrGroupNotOpen      = shared.NewDomainError(shared.KindInvalidState, "GROUP_NOT_OPEN", "Group order is not open")
	ErrCheckoutBlocked   = shared.NewDomainError(shared.KindInvalidState, "CHECKOUT_BLOCKED", "Checkout is blocked")
	ErrInvalidTransition = shared.NewDomainError(shared.KindInvalidState, "INVALID_TRANSITION", "Status transition not allowed")

	ErrAlreadyMember          = shared.NewDomainError(shared.KindConflict, "ALREADY_MEMBER", "User is already a member of this group")
	ErrGroupFull              = shared.NewDomainError(shared.KindConflict, "GROUP_FULL", "Group has reached its member limit")
	ErrHostCannotLeave        = shared.NewDomainError(shared.KindConflict, "HOST_CANNOT_LEAVE", "Host cannot leave while other members remain; delete the group instead")
	ErrHostCannotBeRemoved    = shared.NewDomainError(shared.KindConflict, "HOST_CANNOT_LEAVE", "Host member cannot be removed")
	ErrDuplicateRequest       = shared.NewDomainError(shared.KindConflict, "DUPLICATE_REQUEST", "Request with this idempotency key was already processed")
	ErrConcurrentModification = shared.NewDomainError(shared.KindConflict, "CONCURRENT_MODIFICATION", "Group was modified concurrently, retry the request")

	ErrExternalFailure = shared.NewDomainError(shared.KindExternalFailure, "EXTERNAL_FAILURE", "External service call failed")

	ErrInvalidQuantity      = shared.NewDomainError(shared.KindValidation, "INVALID_QUANTITY", "Quantity must be a positive integer")
	ErrInvalidPrice         = shared.NewDomainError(shared.KindValidation, "INVALID_PRICE", "Unit price cannot be negative")
	ErrInvalidProduct       = shared.NewDomainError(shared.KindValidation, "INVALID_PRODUCT", "Product reference is required")
	ErrInvalidNote          = shared.NewDomainError(shared.KindValidation, "INVALID_NOTE", "Note is too long")
	ErrInvalidName          = shared.NewDomainError(shared.KindValidation, "INVALID_NAME", "Group name must be between 1 and 200 characters")
	ErrInvalidDeliveryMode  = shared.NewDomainError(shared.KindValidation, "INVALID_DELIVERY_MODE", "Delivery mode must be host_address or member_address")
	ErrDeliveryModeMismatch = shared.NewDomainError(shared.KindValidation, "DELIVERY_MODE_MISMATCH", "Member addresses are only used in member_address delivery mode")
	ErrInvalidDeadline      = shared.NewDomainError(shared.KindValidation, "INVALID_DEADLINE", "Deadline must be in the future")
	ErrInvalidDiscountTiers = shared.NewDomainError(shared.KindValidation, "INVALID_DISCOUNT_TIERS", "Discount tiers are invalid")
	ErrInvalidMaxMembers    = shared.NewDomainError(shared.KindValidation, "INVALID_MAX_MEMBERS", "Member limit cannot be negative")
)

func groupNotOpen(status GroupStatus) *shared.DomainError {
	return ErrGroupNotOpen.WithDetail("status", status.String())
}

// NewCheckoutBlockedError builds a CHECKOUT_BLOCKED error naming the unmet precondition
func NewCheckoutBlockedError(reason, message string) *shared.DomainError {
	e := ErrCheckoutBlocked.WithReason(reason)
	e.Message = fmt.Sprintf("Checkout is blocked: %s", message)
	return e
}

// NewAddressMissingError names the member whose address is missing
func NewAddressMissingError(m *Member) *shared.DomainError {
	name := m.DisplayName
	if name == "" {
		name = m.UserID.String()
	}
	return NewCheckoutBlockedError(ReasonAddressMissing,
		fmt.Sprintf("member %s has no delivery address", name)).
		WithDetail("member_id", m.ID.String()).
		WithDetail("user_id", m.UserID.String())
}

// NewExternalFailure wraps a collaborator error
func NewExternalFailure(collaborator string, cause error) *shared.DomainError {
	e := ErrExternalFailure.WithDetail("collaborator", collaborator).Wrap(cause)
	e.Message = fmt.Sprintf("%s call failed", collaborator)
	return e
}
