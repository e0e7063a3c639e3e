// Package services contains server-side business logic: application intake
// and lifecycle, credential provisioning, and the authentication flows.
package services

import (
	"fmt"
	"strings"

	"github.com/ateliertech/portal/internal/common"
	"github.com/ateliertech/portal/internal/server/password"
)

// InvalidSubmissionError carries the per-field problems of a rejected
// application submission. Unwraps to common.ErrValidation.
type InvalidSubmissionError struct {
	Problems []string
}

func (e *InvalidSubmissionError) Error() string {
	return fmt.Sprintf("invalid submission: %s", strings.Join(e.Problems, "; "))
}

func (e *InvalidSubmissionError) Unwrap() error { return common.ErrValidation }

// WeakPasswordError reports which policy checks a proposed password failed.
// Unwraps to common.ErrValidation.
type WeakPasswordError struct {
	Checks password.PolicyResult
}

func (e *WeakPasswordError) Error() string { return "password does not meet the policy" }

func (e *WeakPasswordError) Unwrap() error { return common.ErrValidation }

// GateError rejects a login before the password is even compared: the
// account status (or an elapsed temporary password) forbids it. Reason is a
// stable machine-readable code for the client.
type GateError struct {
	Reason string
}

func (e *GateError) Error() string { return "login refused: " + e.Reason }

const (
	GateReasonPending         = "pending"
	GateReasonInactive        = "inactive"
	GateReasonRejected        = "rejected"
	GateReasonStatusInvalid   = "status_invalid"
	GateReasonTempPassExpired = "temporary_password_expired"
)
