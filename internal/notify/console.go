package notify

// console.go — periodic console status report: safety counters, recent
// trades and pending redemptions in one table.

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/safety"
)

// Console escribe el estado del bot a stdout.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// PrintStatus imprime el resumen de safety y los últimos trades.
func (c *Console) PrintStatus(snap safety.Snapshot, trades []domain.TradeRecord, pending []domain.PendingRedemption) {
	fmt.Fprintf(c.out, "\n[%s] safety: kill=%v trades=%d wins=%d losses=%d spent=$%.2f lost=$%.2f windows=%d\n",
		time.Now().Format("15:04:05"),
		snap.KillSwitch, snap.DailyTradeCount, snap.DailyWinCount, snap.DailyLossCount,
		snap.DailySpent, snap.DailyLossDollars, snap.TradedWindows,
	)

	if len(trades) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Time", "Side", "Size$", "Price", "Result", "Market")
		for _, t := range trades {
			table.Append(
				t.Timestamp.Format("15:04:05"),
				t.Side,
				fmt.Sprintf("%.2f", t.Size),
				fmt.Sprintf("%.3f", t.Price),
				string(t.Result),
				domain.TruncateQuestion(t.Question, t.ConditionID, 40),
			)
		}
		table.Render()
	}

	if len(pending) > 0 {
		fmt.Fprintf(c.out, "  pending redemptions: %d\n", len(pending))
		for _, p := range pending {
			fmt.Fprintf(c.out, "    %-10s %s\n", p.Status, domain.TruncateQuestion(p.Question, p.ConditionID, 50))
		}
	}
}
