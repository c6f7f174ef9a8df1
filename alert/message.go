package alert

import (
	"fmt"
	"strings"

	"github.com/ClipFinance/whale-monitor/common/types"
)

// DefaultExplorerURL is the transaction page prefix used for alert links.
const DefaultExplorerURL = "https://solscan.io/tx/"

// NewMessage formats the alert for a qualifying balance delta.
// Amounts are rendered with two decimals, the link points at explorerURL + signature.
func NewMessage(delta types.BalanceDelta, explorerURL string) types.AlertMessage {
	if explorerURL == "" {
		explorerURL = DefaultExplorerURL
	}
	link := explorerLink(explorerURL, delta.ID)

	text := fmt.Sprintf(
		"🐋 <b>Whale alert!</b>\n\n💰 <b>Amount:</b> %.2f SOL\n🔗 <a href=\"%s\">View transaction</a>\n📉 Balance change: %.2f -> %.2f",
		delta.Amount, link, delta.PreAmount, delta.PostAmount,
	)

	return types.AlertMessage{
		ID:   delta.ID,
		Text: text,
		Link: link,
	}
}

func explorerLink(base string, id types.TransactionID) string {
	if strings.Contains(base, "%s") {
		return strings.Replace(base, "%s", id.String(), 1)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + id.String()
}
