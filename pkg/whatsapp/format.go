package whatsapp

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/payloads"
)

// FormatDemandReport renders the pending demand summary as a chat message.
func FormatDemandReport(report payloads.DemandReportEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Pending demand report* (%s)\n", report.GeneratedAt.Format("2006-01-02 15:04"))
	if len(report.Lines) == 0 {
		b.WriteString("No pending demands.")
		return b.String()
	}
	for _, line := range report.Lines {
		fmt.Fprintf(&b, "\n• %s %s: %d", line.ItemNumber, line.ProductName, line.Quantity)
		if line.Requests > 1 {
			fmt.Fprintf(&b, " (%d requests)", line.Requests)
		}
	}
	fmt.Fprintf(&b, "\n\nTotal units: %d", report.TotalQuantity)
	return b.String()
}

// FormatDemandCreated renders a single new demand.
func FormatDemandCreated(event payloads.DemandEvent) string {
	who := event.ClientName
	if who == "" {
		who = "A client"
	}
	msg := fmt.Sprintf("*New demand*\n%s requested %d x %s (%s)", who, event.Quantity, event.ProductName, event.ItemNumber)
	if event.Notes != "" {
		msg += "\nNotes: " + event.Notes
	}
	return msg
}
