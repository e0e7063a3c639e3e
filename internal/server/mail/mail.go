// Package mail defines the best-effort e-mail collaborator. Delivery
// failures are reported in the Result, logged by callers, and never fail a
// workflow.
package mail

import "context"

// Result mirrors the transport outcome: either a message id or the error
// that prevented delivery.
type Result struct {
	Success   bool
	MessageID string
	Err       error
}

// Mailer sends one HTML message. Implementations must honor ctx deadlines;
// a timeout is just another failed Result.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) Result
}
