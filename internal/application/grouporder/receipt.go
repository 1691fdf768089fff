package grouporder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	receiptContentType = "application/json"
	// ReceiptTaskKind names receipt uploads on a TaskQueue
	ReceiptTaskKind = "receipt"
)

// TaskQueue runs background work for a group outside the caller's goroutine.
// SubmitTask reports false when a task of the same kind is already pending.
type TaskQueue interface {
	SubmitTask(kind string, groupID uuid.UUID, task func(ctx context.Context) error) (bool, error)
}

// ReceiptStorage is the object store that keeps checkout receipts
type ReceiptStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
	GenerateDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
}

// Receipt is the archived record of a completed checkout: the cart as it was
// priced when the orders were created, plus the orders themselves.
type Receipt struct {
	GroupID    uuid.UUID                `json:"group_id"`
	StoreID    uuid.UUID                `json:"store_id"`
	OrderIDs   []uuid.UUID              `json:"order_ids"`
	CheckedOut time.Time                `json:"checked_out_at"`
	Snapshot   grouporder.GroupSnapshot `json:"snapshot"`
}

// ReceiptResponse points the caller at an archived receipt
type ReceiptResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReceiptKey is the object key of a group's receipt
func ReceiptKey(storeID, groupID uuid.UUID) string {
	return fmt.Sprintf("receipts/%s/%s.json", storeID, groupID)
}

// ReceiptArchiver stores a receipt for every completed checkout.
// It runs as an event handler so a storage outage never fails the checkout.
// With a queue the upload leaves the publishing goroutine, which still holds
// the group lock.
type ReceiptArchiver struct {
	storage ReceiptStorage
	queue   TaskQueue
	logger  *zap.Logger
}

// NewReceiptArchiver creates a ReceiptArchiver
func NewReceiptArchiver(storage ReceiptStorage, logger *zap.Logger) *ReceiptArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptArchiver{storage: storage, logger: logger.Named("receipt_archiver")}
}

// UseQueue hands uploads to q. Call before events flow.
func (a *ReceiptArchiver) UseQueue(q TaskQueue) {
	a.queue = q
}

// EventTypes implements shared.EventHandler
func (a *ReceiptArchiver) EventTypes() []string {
	return []string{grouporder.EventTypeGroupUpdated}
}

// Handle archives the receipt carried by a checked_out group-updated event
func (a *ReceiptArchiver) Handle(ctx context.Context, event shared.DomainEvent) error {
	evt, ok := event.(*grouporder.GroupUpdatedEvent)
	if !ok || evt.Change != grouporder.ChangeCheckedOut {
		return nil
	}

	receipt := Receipt{
		GroupID:    evt.Snapshot.ID,
		StoreID:    evt.Snapshot.StoreID,
		OrderIDs:   evt.OrderIDs,
		CheckedOut: evt.OccurredAt(),
		Snapshot:   evt.Snapshot,
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	key := ReceiptKey(receipt.StoreID, receipt.GroupID)
	upload := func(ctx context.Context) error {
		return a.upload(ctx, key, data, receipt)
	}
	if a.queue == nil {
		return upload(ctx)
	}

	queued, err := a.queue.SubmitTask(ReceiptTaskKind, receipt.GroupID, upload)
	if err != nil {
		return fmt.Errorf("queue receipt %s: %w", key, err)
	}
	if !queued {
		a.logger.Debug("Receipt upload already pending", zap.String("key", key))
	}
	return nil
}

func (a *ReceiptArchiver) upload(ctx context.Context, key string, data []byte, receipt Receipt) error {
	if err := a.storage.Upload(ctx, key, data, receiptContentType); err != nil {
		return fmt.Errorf("archive receipt %s: %w", key, err)
	}
	a.logger.Info("Checkout receipt archived",
		zap.String("group_id", receipt.GroupID.String()),
		zap.String("key", key),
		zap.Int("orders", len(receipt.OrderIDs)),
	)
	return nil
}

// GetReceipt returns a short-lived download link for a closed group's receipt.
// Anyone who was a member at checkout may fetch it.
func (s *GroupOrderService) GetReceipt(ctx context.Context, groupID, userID uuid.UUID) (*ReceiptResponse, error) {
	g, err := s.read(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.MemberByUser(userID) == nil {
		return nil, grouporder.ErrNotAMember
	}
	if g.Status != grouporder.GroupStatusClosed || s.receipts == nil {
		return nil, grouporder.ErrReceiptNotFound
	}

	key := ReceiptKey(g.StoreID, g.ID)
	exists, err := s.receipts.ObjectExists(ctx, key)
	if err != nil {
		return nil, grouporder.NewExternalFailure("receipt_storage", err)
	}
	if !exists {
		return nil, grouporder.ErrReceiptNotFound
	}

	url, expiresAt, err := s.receipts.GenerateDownloadURL(ctx, key, 0)
	if err != nil {
		return nil, grouporder.NewExternalFailure("receipt_storage", err)
	}
	return &ReceiptResponse{URL: url, ExpiresAt: expiresAt}, nil
}
