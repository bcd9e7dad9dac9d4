package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"restopos/internal/infra"
	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReceiptMailer sends a rendered receipt. *infra.Mailer implements it.
type ReceiptMailer interface {
	Enabled() bool
	SendReceipt(to, subject, body, pdfPath string) error
}

// renderFunc matches infra.GenerateReceiptPDF.
type renderFunc func(o *model.Order, receiptID uuid.UUID, h infra.ReceiptHeader, storagePath string) (string, error)

// ReceiptWorker renders the receipt PDF for a paid order and mails it when
// the order carries a customer email.
type ReceiptWorker struct {
	store       repository.Store
	mailer      ReceiptMailer
	header      infra.ReceiptHeader
	storagePath string
	render      renderFunc
}

func NewReceiptWorker(store repository.Store, mailer ReceiptMailer, header infra.ReceiptHeader, storagePath string) *ReceiptWorker {
	return &ReceiptWorker{
		store:       store,
		mailer:      mailer,
		header:      header,
		storagePath: storagePath,
		render:      infra.GenerateReceiptPDF,
	}
}

// Process handles a single receipt job:
//  1. Parse ReceiptJobPayload
//  2. Load the receipt, creating it as pending on first delivery
//  3. Render the PDF unless an earlier attempt already did
//  4. Mail it when the order has a customer email and SMTP is configured
//
// Each stage is recorded on the receipt, so a retry resumes where the last
// attempt stopped.
func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("receipt_worker: invalid payload")
		return nil
	}
	receiptID, err1 := uuid.Parse(payload.ReceiptID)
	orderID, err2 := uuid.Parse(payload.OrderID)
	if err := errors.Join(err1, err2); err != nil {
		log.Error().Err(err).Msg("receipt_worker: invalid ids")
		return nil
	}

	order, err := w.store.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Error().Str("order_id", payload.OrderID).Msg("receipt_worker: order not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("receipt_worker: load order: %w", err)
	}

	rc, err := w.loadOrCreate(ctx, receiptID, order)
	if err != nil {
		return err
	}
	if rc.Status == model.ReceiptEmailed {
		return nil
	}

	// Render
	if rc.PDFPath == nil || !fileExists(*rc.PDFPath) {
		path, err := w.render(order, rc.ID, w.header, w.storagePath)
		if err != nil {
			return w.fail(ctx, rc, fmt.Errorf("render: %w", err))
		}
		rc.PDFPath = &path
		rc.Status = model.ReceiptRendered
		rc.LastError = nil
		if err := w.store.Receipts().Update(ctx, rc); err != nil {
			return fmt.Errorf("receipt_worker: update: %w", err)
		}
		log.Info().Str("pdf", path).Int("order_number", order.OrderNumber).Msg("receipt_worker: receipt rendered")
	}

	// Mail
	to := order.Customer.Email
	if to == nil || *to == "" || !w.mailer.Enabled() {
		return nil
	}
	subject := fmt.Sprintf("%s receipt, order #%d", w.header.RestaurantName, order.OrderNumber)
	body := fmt.Sprintf("Thank you for your visit.\nTotal: %s %s\n", w.header.CurrencyCode, order.Total.StringFixed(3))
	if err := w.mailer.SendReceipt(*to, subject, body, *rc.PDFPath); err != nil {
		return w.fail(ctx, rc, fmt.Errorf("email: %w", err))
	}
	rc.Status = model.ReceiptEmailed
	rc.EmailedTo = to
	rc.LastError = nil
	if err := w.store.Receipts().Update(ctx, rc); err != nil {
		return fmt.Errorf("receipt_worker: update: %w", err)
	}
	log.Info().Str("to", *to).Int("order_number", order.OrderNumber).Msg("receipt_worker: receipt emailed")
	return nil
}

func (w *ReceiptWorker) loadOrCreate(ctx context.Context, id uuid.UUID, o *model.Order) (*model.Receipt, error) {
	rc, err := w.store.Receipts().FindByID(ctx, id)
	if err == nil {
		return rc, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("receipt_worker: load receipt: %w", err)
	}
	rc = &model.Receipt{
		ID:          id,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Total:       o.Total,
		Status:      model.ReceiptPending,
	}
	if err := w.store.Receipts().Create(ctx, rc); err != nil {
		return nil, fmt.Errorf("receipt_worker: create receipt: %w", err)
	}
	return rc, nil
}

// fail records cause on the receipt and returns it so the pool retries.
func (w *ReceiptWorker) fail(ctx context.Context, rc *model.Receipt, cause error) error {
	msg := cause.Error()
	rc.Status = model.ReceiptError
	rc.RetryCount++
	rc.LastError = &msg
	if err := w.store.Receipts().Update(ctx, rc); err != nil {
		log.Error().Err(err).Str("receipt_id", rc.ID.String()).Msg("receipt_worker: failed to record error")
	}
	log.Warn().Err(cause).Str("receipt_id", rc.ID.String()).Int("retry_count", rc.RetryCount).Msg("receipt_worker: attempt failed")
	return fmt.Errorf("receipt_worker: %w", cause)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
