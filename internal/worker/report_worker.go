package worker

// report_worker.go
// Processes closing-report jobs from QueueSessionReports.
// Emails the final figures of a cash session to the back office via SMTP.

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"washly/internal/dto"
	"washly/internal/infra"
	"washly/internal/model"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ReportSource builds the report of a session (service.CajaService).
type ReportSource interface {
	Report(ctx context.Context, sessionID uuid.UUID) (*dto.CashSessionReport, error)
}

// SessionStore is the slice of repository.CajaRepository the worker needs.
type SessionStore interface {
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	ClaimReportSend(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ReleaseReportClaim(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ReportSender delivers a plain-text email (infra.Mailer).
type ReportSender interface {
	Send(msg infra.Mail) error
}

// SessionHeader tags every closing-report email with its cash session.
const SessionHeader = "X-Cash-Session-ID"

// SessionReportWorker sends one email per closed session. report_sent_at is
// claimed with a conditional update before sending, so a sweep re-enqueue
// racing a pending job cannot email the same report twice.
type SessionReportWorker struct {
	sessions SessionStore
	reports  ReportSource
	sender   ReportSender
	cb       *infra.CircuitBreaker
	to       []string
	currency string
}

// NewSessionReportWorker sends to the comma separated address list to.
func NewSessionReportWorker(sessions SessionStore, reports ReportSource, sender ReportSender, cb *infra.CircuitBreaker, to, currency string) *SessionReportWorker {
	return &SessionReportWorker{
		sessions: sessions,
		reports:  reports,
		sender:   sender,
		cb:       cb,
		to:       infra.ParseRecipients(to),
		currency: currency,
	}
}

// Process implements JobHandler.
func (w *SessionReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload SessionReportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("report_worker: invalid payload")
		return nil // malformed payloads are never retried
	}
	id, err := uuid.Parse(payload.SessionID)
	if err != nil {
		log.Error().Str("session_id", payload.SessionID).Msg("report_worker: invalid session id")
		return nil
	}

	sess, err := w.sessions.FindSessionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", id, err)
	}
	if sess.Status != model.SessionClosed || sess.ReportSentAt != nil {
		log.Debug().Str("session_id", id.String()).Msg("report_worker: nothing to send")
		return nil
	}

	report, err := w.reports.Report(ctx, id)
	if err != nil {
		return fmt.Errorf("build report %s: %w", id, err)
	}

	// Postgres keeps microseconds; the release matches on the stored value.
	at := time.Now().UTC().Truncate(time.Microsecond)
	claimed, err := w.sessions.ClaimReportSend(ctx, id, at)
	if err != nil {
		return fmt.Errorf("claim report %s: %w", id, err)
	}
	if !claimed {
		log.Debug().Str("session_id", id.String()).Msg("report_worker: already claimed")
		return nil
	}

	msg := infra.Mail{
		To:      w.to,
		Subject: fmt.Sprintf("Cierre de caja %s", report.OpenedAt[:10]),
		Text:    FormatReport(report, w.currency),
		Headers: map[string]string{SessionHeader: id.String()},
	}
	if err := w.cb.Execute(func() error { return w.sender.Send(msg) }); err != nil {
		if rerr := w.sessions.ReleaseReportClaim(ctx, id, at); rerr != nil {
			log.Error().Err(rerr).Str("session_id", id.String()).Msg("report_worker: claim not released")
		}
		return fmt.Errorf("send report %s: %w", id, err)
	}

	log.Info().Str("session_id", id.String()).Strs("to", w.to).Msg("report_worker: closing report sent")
	return nil
}

// FormatReport renders the closing report as plain text with amounts in the
// configured currency.
func FormatReport(r *dto.CashSessionReport, currency string) string {
	amt := func(d decimal.Decimal) string {
		return money.New(d.Shift(2).Round(0).IntPart(), currency).Display()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sesion:            %s\n", r.ID)
	fmt.Fprintf(&b, "Usuario:           %s\n", r.UserID)
	fmt.Fprintf(&b, "Apertura:          %s\n", r.OpenedAt)
	if r.ClosedAt != nil {
		fmt.Fprintf(&b, "Cierre:            %s\n", *r.ClosedAt)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Monto inicial:     %s\n", amt(r.OpeningAmount))
	fmt.Fprintf(&b, "Ventas efectivo:   %s\n", amt(r.CashTotal))
	fmt.Fprintf(&b, "Ventas digitales:  %s\n", amt(r.DigitalTotal))
	fmt.Fprintf(&b, "Ventas totales:    %s\n", amt(r.SalesTotal))
	fmt.Fprintf(&b, "Egresos:           %s\n", amt(r.ExpenseTotal))
	fmt.Fprintf(&b, "Efectivo teorico:  %s\n", amt(r.TheoreticalCash))
	if r.CountedAmount != nil {
		fmt.Fprintf(&b, "Efectivo contado:  %s\n", amt(*r.CountedAmount))
	}
	if r.Variance != nil {
		class := ""
		if r.VarianceClass != nil {
			class = " (" + *r.VarianceClass + ")"
		}
		fmt.Fprintf(&b, "Diferencia:        %s%s\n", amt(*r.Variance), class)
	}

	if len(r.ByMethod) > 0 {
		b.WriteString("\nPor metodo de pago:\n")
		methods := make([]string, 0, len(r.ByMethod))
		for m := range r.ByMethod {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			fmt.Fprintf(&b, "  %-10s %s\n", m, amt(r.ByMethod[m]))
		}
	}
	if r.Comments != nil && *r.Comments != "" {
		fmt.Fprintf(&b, "\nComentarios: %s\n", *r.Comments)
	}
	return b.String()
}
