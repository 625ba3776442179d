package domain

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by the store adapters. Business outcomes surface
// to callers as *Rejection; these mark the store-level conditions the
// orchestrator translates.
var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrDuplicateRefund      = errors.New("duplicate refund")
	ErrRefundAmountExceeded = errors.New("refund amount exceeds remaining balance")
)

// Rejection codes. The vocabulary is fixed; transports key off Code, not
// the message text.
const (
	CodeTransactionNotFound      = "TRANSACTION_NOT_FOUND"
	CodeInvalidTransactionStatus = "INVALID_TRANSACTION_STATUS"
	CodeDuplicateRefund          = "DUPLICATE_REFUND"
	CodeInvalidItemIDs           = "INVALID_ITEM_IDS"
	CodeRefundAmountExceeded     = "REFUND_AMOUNT_EXCEEDED"
	CodeInstallmentNotCharged    = "INSTALLMENT_NOT_CHARGED"
	CodeCalculationError         = "CALCULATION_ERROR"
)

// Rejection is an expected business outcome of an invalid or
// already-satisfied refund request. It is not a system fault: rejections
// are audited and reported to the caller with a machine-readable code,
// while anything that is not a Rejection is treated as a defect and never
// leaks detail past the transport boundary.
type Rejection struct {
	Code    string
	Message string
	Details map[string]any
	// Status is the suggested transport status for the rejection class.
	Status int
}

func (r *Rejection) Error() string { return r.Message }

// NewRejection builds a rejection with an explicit transport status.
func NewRejection(code, message string, status int, details map[string]any) *Rejection {
	return &Rejection{Code: code, Message: message, Status: status, Details: details}
}

// Reject builds a rejection with the default unprocessable status.
func Reject(code, message string, details map[string]any) *Rejection {
	return NewRejection(code, message, http.StatusUnprocessableEntity, details)
}

// AsRejection unwraps err into a *Rejection when it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
