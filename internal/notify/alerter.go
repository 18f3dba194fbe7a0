package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/reislab/travel-platform/internal/dispatch"
	"github.com/reislab/travel-platform/pkg/logging"
)

// DispatchAlerter emails the operations address when a dispatch pass
// leaves failed messages behind. Failures are terminal under the
// at-most-once policy, so someone has to look at them.
type DispatchAlerter struct {
	sender EmailSender
	to     string
	logger *logging.Logger
}

func NewDispatchAlerter(sender EmailSender, to string, logger *logging.Logger) *DispatchAlerter {
	if logger == nil {
		logger = logging.Default()
	}
	return &DispatchAlerter{sender: sender, to: to, logger: logger}
}

// AlertFailures sends a summary of the failed messages in a report.
// Does nothing when there is nothing to report or no alert address.
func (a *DispatchAlerter) AlertFailures(ctx context.Context, report *dispatch.Report) {
	if a == nil || a.sender == nil || a.to == "" || report == nil || report.Failed == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d scheduled WhatsApp messages failed to send.\n\n", report.Failed, report.Processed)
	for _, res := range report.Results {
		if res.Success {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", res.ID, res.Error)
	}

	msg := EmailMessage{
		To:      a.to,
		Subject: fmt.Sprintf("Dispatch failures: %d message(s)", report.Failed),
		Body:    b.String(),
	}
	if err := a.sender.Send(ctx, msg); err != nil {
		a.logger.Error("dispatch failure alert not sent", "error", err)
	}
}
