package notify

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/observability"
)

// USDCMint is the USDC mint, on the default ignore list.
const USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// Report summarises one Notify call.
type Report struct {
	Sent    int
	Skipped int
	Failed  int
	Errors  []error
}

// Notifier filters events against an ignore list and delivers the rest to a Sink.
type Notifier struct {
	sink   Sink
	ignore map[string]struct{}
	logger *zap.Logger
}

// NotifierOptions configures a Notifier.
type NotifierOptions struct {
	Sink   Sink
	Ignore []string // nil means []string{USDCMint}
	Logger *zap.Logger
}

// NewNotifier creates a new Notifier.
func NewNotifier(opts NotifierOptions) *Notifier {
	ignoreList := opts.Ignore
	if ignoreList == nil {
		ignoreList = []string{USDCMint}
	}

	ignore := make(map[string]struct{}, len(ignoreList))
	for _, mint := range ignoreList {
		ignore[mint] = struct{}{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Notifier{
		sink:   opts.Sink,
		ignore: ignore,
		logger: logger,
	}
}

// Ignored reports whether mint is on the ignore list.
func (n *Notifier) Ignored(mint string) bool {
	_, ok := n.ignore[mint]
	return ok
}

// Notify delivers one message per event, in order. Delivery errors are
// collected in the report and do not stop later deliveries.
func (n *Notifier) Notify(ctx context.Context, events []domain.SignificantChangeEvent) Report {
	var report Report

	for _, ev := range events {
		if n.Ignored(ev.Mint) {
			report.Skipped++
			observability.RecordNotification("skipped")
			continue
		}

		if err := n.sink.Send(ctx, Render(ev)); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, errors.Wrapf(err, "notify %s", ev.Mint))
			observability.RecordNotification("failed")
			n.logger.Error("error sending notification", zap.String("mint", ev.Mint), zap.Error(err))
			continue
		}

		report.Sent++
		observability.RecordNotification("sent")
	}

	return report
}
