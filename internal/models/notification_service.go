package models

import (
	"context"
	"fmt"
	"strings"
)

type AlertService interface {
	SendAlert(ctx context.Context, alert *Alert)
}

// Alert is an operator-facing message about a job that needs attention.
type Alert struct {
	Title   string `json:"title"`
	JobID   string `json:"job_id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Subject string `json:"subject,omitempty"`
	// MintAddress is set when a token exists on-chain without a local record.
	MintAddress string `json:"mint_address,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (a *Alert) String() string {
	var b strings.Builder
	b.WriteString(a.Title)
	if a.Kind != "" {
		fmt.Fprintf(&b, "\nkind: %s", a.Kind)
	}
	if a.JobID != "" {
		fmt.Fprintf(&b, "\njob: %s", a.JobID)
	}
	if a.Subject != "" {
		fmt.Fprintf(&b, "\nsubject: %s", a.Subject)
	}
	if a.MintAddress != "" {
		fmt.Fprintf(&b, "\nmint: %s", a.MintAddress)
	}
	if a.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", a.Error)
	}
	return b.String()
}
