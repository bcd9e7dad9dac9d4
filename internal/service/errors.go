package service

import (
	"errors"
	"fmt"

	"restopos/internal/repository"
)

// ErrorKind classifies a rejected operation. Every kind leaves state unchanged.
type ErrorKind int

const (
	// KindInvalid: malformed input (bad id, non-positive quantity).
	KindInvalid ErrorKind = iota
	// KindNotFound: the order, line or shift does not exist or is not
	// visible to the caller's branch.
	KindNotFound
	// KindPrecondition: the transition is illegal in the current state.
	KindPrecondition
	// KindConflict: a concurrent mutation won; reload and retry.
	KindConflict
	// KindRecoverable: the user can fix it and try again (pay more,
	// refund less, lower the discount, retry the kitchen).
	KindRecoverable
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalid:
		return "INVALID_ARGUMENT"
	case KindNotFound:
		return "NOT_FOUND"
	case KindPrecondition:
		return "FAILED_PRECONDITION"
	case KindConflict:
		return "CONFLICT"
	case KindRecoverable:
		return "RECOVERABLE"
	default:
		return "UNKNOWN"
	}
}

// Reason codes. They are part of the API and must stay stable.
const (
	CodeInvalidInput           = "invalid_input"
	CodeOrderNotFound          = "order_not_found"
	CodeLineNotFound           = "line_not_found"
	CodeShiftNotFound          = "shift_not_found"
	CodeMenuItemNotFound       = "menu_item_not_found"
	CodeMenuItemUnavailable    = "menu_item_unavailable"
	CodeModifierNotFound       = "modifier_not_found"
	CodeNoOpenShift            = "no_open_shift"
	CodeShiftClosed            = "shift_closed"
	CodeShiftAlreadyOpen       = "shift_already_open"
	CodeHeldOrdersOutstanding  = "held_orders_outstanding"
	CodeOrderNotOpen           = "order_not_open"
	CodeOrderNotHeld           = "order_not_held"
	CodeOrderEmpty             = "order_empty"
	CodeOrderTerminal          = "order_terminal"
	CodeOrderPaidUseRefund     = "order_paid_use_refund"
	CodeOrderAlreadyPaid       = "order_already_paid"
	CodeOrderNotPaid           = "order_not_paid"
	CodeOrderHasRefunds        = "order_has_refunds"
	CodeOrderFullyRefunded     = "order_fully_refunded"
	CodeRefundExceedsRemaining = "refund_exceeds_remaining"
	CodePaymentInsufficient    = "payment_insufficient"
	CodeNonCashExceedsTotal    = "non_cash_exceeds_total"
	CodeDiscountExceeds        = "discount_exceeds_subtotal"
	CodeLineVoided             = "line_voided"
	CodeLineAlreadySent        = "line_already_sent"
	CodeLastLineTransfer       = "last_line_transfer"
	CodeSameOrder              = "same_order"
	CodeSameTable              = "same_table"
	CodeMergePaidOrder         = "merge_paid_order"
	CodeMergeRequiresTables    = "merge_requires_tables"
	CodeSplitTakesEverything   = "split_takes_everything"
	CodeSplitQuantity          = "split_quantity_exceeds_line"
	CodeOrderNotRelocatable    = "order_not_relocatable"
	CodeTableOccupied          = "table_occupied"
	CodeNotDineIn              = "not_dine_in"
	CodeNothingToSend          = "nothing_to_send"
	CodeKitchenUnavailable     = "kitchen_unavailable"
	CodeTableHasNoOrders       = "table_has_no_orders"
	CodeIdempotencyMismatch    = "idempotency_key_mismatch"
	CodeConcurrentUpdate       = "concurrent_update"
)

// Error is the domain error returned by every service operation.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) *Error {
	return newErr(KindInvalid, CodeInvalidInput, format, args...)
}

func precondition(code, format string, args ...any) *Error {
	return newErr(KindPrecondition, code, format, args...)
}

func recoverable(code, format string, args ...any) *Error {
	return newErr(KindRecoverable, code, format, args...)
}

// AsError extracts the domain error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// mapRepoErr turns repository sentinels into domain errors; notFoundCode
// names what was missing. Anything else is passed through untouched.
func mapRepoErr(err error, notFoundCode string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: KindNotFound, Code: notFoundCode, Message: "not found", Err: err}
	case errors.Is(err, repository.ErrVersionConflict):
		return &Error{Kind: KindConflict, Code: CodeConcurrentUpdate, Message: "modified concurrently, reload and retry", Err: err}
	default:
		return err
	}
}
