package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatrdv/platform/pkg/logging"
)

// BookingNotice carries everything the confirmation emails need.
type BookingNotice struct {
	TenantName      string
	AgentName       string
	AgentEmail      string
	FallbackEmail   string // tenant operator inbox, used when the agent has no email
	VisitorName     string
	VisitorEmail    string
	VisitorPhone    string
	Service         string
	Date            string // YYYY-MM-DD
	Time            string // HH:MM
	DurationMinutes int
}

// DispatchResult reports each channel separately so the caller can record
// which confirmations actually left the building.
type DispatchResult struct {
	AgentSent    bool
	AgentError   error
	VisitorSent  bool
	VisitorError error
}

// Dispatcher sends booking confirmations over email. Channels are
// independent: a bounce on one never blocks the other.
type Dispatcher struct {
	sender EmailSender
	logger *logging.Logger
}

func NewDispatcher(sender EmailSender, logger *logging.Logger) *Dispatcher {
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{sender: sender, logger: logger}
}

// SendBookingConfirmations notifies the assigned agent (or the tenant's
// fallback inbox) and the visitor.
func (d *Dispatcher) SendBookingConfirmations(ctx context.Context, notice BookingNotice) DispatchResult {
	var result DispatchResult

	agentTo := notice.AgentEmail
	if agentTo == "" {
		agentTo = notice.FallbackEmail
	}
	if agentTo != "" {
		msg := agentConfirmation(notice, agentTo)
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Warn("agent confirmation failed", "to", agentTo, "error", err)
			result.AgentError = err
		} else {
			result.AgentSent = true
		}
	} else {
		d.logger.Warn("no agent or fallback email, skipping agent confirmation",
			"tenant", notice.TenantName)
		result.AgentError = fmt.Errorf("notify: no recipient for agent confirmation")
	}

	if notice.VisitorEmail != "" {
		msg := visitorConfirmation(notice)
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Warn("visitor confirmation failed", "to", notice.VisitorEmail, "error", err)
			result.VisitorError = err
		} else {
			result.VisitorSent = true
		}
	} else {
		result.VisitorError = fmt.Errorf("notify: visitor has no email")
	}

	return result
}

func agentConfirmation(n BookingNotice, to string) EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Nouveau rendez-vous confirmé.\n\n")
	fmt.Fprintf(&b, "Visiteur : %s\n", n.VisitorName)
	if n.VisitorEmail != "" {
		fmt.Fprintf(&b, "Email : %s\n", n.VisitorEmail)
	}
	if n.VisitorPhone != "" {
		fmt.Fprintf(&b, "Téléphone : %s\n", n.VisitorPhone)
	}
	if n.Service != "" {
		fmt.Fprintf(&b, "Service : %s\n", n.Service)
	}
	fmt.Fprintf(&b, "Date : %s à %s (%d min)\n", n.Date, n.Time, n.DurationMinutes)

	return EmailMessage{
		To:      to,
		ToName:  n.AgentName,
		Subject: fmt.Sprintf("Nouveau RDV le %s à %s - %s", n.Date, n.Time, n.VisitorName),
		Body:    b.String(),
	}
}

func visitorConfirmation(n BookingNotice) EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n", n.VisitorName)
	fmt.Fprintf(&b, "Votre rendez-vous est confirmé pour le %s à %s.\n", n.Date, n.Time)
	if n.AgentName != "" {
		fmt.Fprintf(&b, "Vous serez reçu(e) par %s.\n", n.AgentName)
	}
	if n.TenantName != "" {
		fmt.Fprintf(&b, "\nÀ bientôt,\n%s", n.TenantName)
	}

	return EmailMessage{
		To:      n.VisitorEmail,
		ToName:  n.VisitorName,
		Subject: fmt.Sprintf("Confirmation de votre rendez-vous du %s", n.Date),
		Body:    b.String(),
	}
}
