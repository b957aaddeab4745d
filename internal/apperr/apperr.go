package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Validation   Kind = "validation"
	NotFound     Kind = "not_found"
	Conflict     Kind = "conflict"
	Provisioning Kind = "provisioning"
	Unauthorized Kind = "unauthorized"
	Internal     Kind = "internal"
)

const genericMessage = "unexpected error"

type AppError struct {
	Kind      Kind
	PublicMsg string // safe to show to any caller
	Detail    string // provider internals, shown to administrators only
	OrderID   string
	Forbidden bool // authenticated but lacking the required role
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.PublicMsg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
}

func (e *AppError) Unwrap() error { return e.Err }

func ValidationErr(publicMsg string) *AppError {
	return &AppError{Kind: Validation, PublicMsg: publicMsg}
}

func NotFoundErr(publicMsg string) *AppError {
	return &AppError{Kind: NotFound, PublicMsg: publicMsg}
}

func ConflictErr(publicMsg string) *AppError {
	return &AppError{Kind: Conflict, PublicMsg: publicMsg}
}

func UnauthorizedErr(publicMsg string) *AppError {
	return &AppError{Kind: Unauthorized, PublicMsg: publicMsg}
}

func ForbiddenErr(publicMsg string) *AppError {
	return &AppError{Kind: Unauthorized, PublicMsg: publicMsg, Forbidden: true}
}

// ProvisioningErr reports a failed remote provisioning attempt. The order id is always
// returned so the caller can remediate manually.
func ProvisioningErr(orderID string, err error) *AppError {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &AppError{
		Kind:      Provisioning,
		PublicMsg: "payment approved but server provisioning failed",
		Detail:    detail,
		OrderID:   orderID,
		Err:       err,
	}
}

// Wrap hides an internal error behind a generic message.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return &AppError{Kind: Internal, PublicMsg: genericMessage, Err: err}
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func Is(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

func HTTPStatus(err error) int {
	ae, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		if ae.Forbidden {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Provisioning:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return genericMessage
}
