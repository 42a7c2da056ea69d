package telegram

import (
	"fmt"
	"strings"

	"ignitex-signal-engine/internal/entity"
)

// FormatSignal renders a published signal as a Markdown message.
func FormatSignal(signal *entity.Signal) string {
	var b strings.Builder

	arrow := "🟢 LONG"
	if signal.Direction == entity.DirectionShort {
		arrow = "🔴 SHORT"
	}

	b.WriteString(fmt.Sprintf("⚡ *%s Signal* | %s\n\n", signal.Tier, signal.Symbol))
	b.WriteString(fmt.Sprintf("%s | strategy `%s`\n", arrow, signal.StrategyName))
	b.WriteString(fmt.Sprintf("Entry: `%.6g`\n", signal.EntryPrice))
	if signal.StopLoss > 0 {
		b.WriteString(fmt.Sprintf("Stop: `%.6g`\n", signal.StopLoss))
	}
	for i, target := range signal.Targets {
		b.WriteString(fmt.Sprintf("TP%d: `%.6g`\n", i+1, target))
	}
	b.WriteString(fmt.Sprintf("\nConfidence: %.0f%% | Win probability: %.0f%%\n",
		signal.Confidence, signal.WinProbability*100))

	return b.String()
}
