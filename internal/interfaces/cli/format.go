package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"

	"github.com/jmanzanog/trading-simulator/internal/domain"
)

const currencyCode = money.USD

var hundred = domain.NewDecimalFromInt(100)

// formatMoney renders d in dollars, e.g. $98,542.10. Values are rounded half up to cents.
func formatMoney(d domain.Decimal) string {
	cents, err := d.Mul(hundred)
	if err != nil {
		return d.String()
	}
	if cents, err = cents.Round(0); err != nil {
		return d.String()
	}
	minor, err := cents.Int64()
	if err != nil {
		return d.String()
	}
	return money.New(minor, currencyCode).Display()
}

// formatSignedMoney prefixes gains with "+".
func formatSignedMoney(d domain.Decimal) string {
	if d.Sign() > 0 {
		return "+" + formatMoney(d)
	}
	return formatMoney(d)
}

func formatPercent(d domain.Decimal) string {
	r, err := d.Round(2)
	if err != nil {
		return d.String() + "%"
	}
	if r.Sign() > 0 {
		return "+" + r.String() + "%"
	}
	return r.String() + "%"
}

func renderValuation(w io.Writer, v *domain.PortfolioValuation) error {
	fmt.Fprintf(w, "Portfolio %s (%s)\n", v.PortfolioID, v.Owner)
	fmt.Fprintf(w, "Cash: %s\n\n", formatMoney(v.Cash))

	if len(v.Holdings) == 0 {
		fmt.Fprintln(w, "No holdings.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "ASSET\tTYPE\tQUANTITY\tAVG PRICE\tPRICE\tVALUE\tP/L\tP/L %\t")
		for _, h := range v.Holdings {
			price := formatMoney(h.CurrentPrice)
			if !h.PriceAvailable {
				price = "n/a"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				h.Symbol, h.AssetType, h.Quantity, formatMoney(h.AverageBuyPrice), price,
				formatMoney(h.CurrentValue), formatSignedMoney(h.ProfitLoss), formatPercent(h.ProfitLossPercent))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Holdings value:      %s\n", formatMoney(v.HoldingsValue))
	fmt.Fprintf(w, "Total account value: %s\n", formatMoney(v.TotalAccountValue))
	_, err := fmt.Fprintf(w, "Total P/L:           %s (%s)\n", formatSignedMoney(v.TotalProfitLoss), formatPercent(v.TotalProfitLossPercent))
	return err
}

func renderReceipt(w io.Writer, r *domain.TradeReceipt) error {
	verb := "Bought"
	if r.Side == domain.SideSell {
		verb = "Sold"
	}
	fmt.Fprintf(w, "%s %s %s at %s for %s\n", verb, r.Quantity, r.Symbol, formatMoney(r.Price), formatMoney(r.Total))
	if r.PositionClosed() {
		fmt.Fprintf(w, "Position in %s closed\n", r.Symbol)
	} else {
		fmt.Fprintf(w, "Holding: %s %s, average price %s\n", r.HoldingQuantity, r.Symbol, formatMoney(r.AverageBuyPrice))
	}
	_, err := fmt.Fprintf(w, "Cash: %s\n", formatMoney(r.Cash))
	return err
}

func renderTrades(w io.Writer, trades []domain.TradeReceipt) error {
	if len(trades) == 0 {
		_, err := fmt.Fprintln(w, "No trades.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSIDE\tASSET\tQUANTITY\tPRICE\tTOTAL\tCASH")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ExecutedAt.Format("2006-01-02 15:04:05"), strings.ToUpper(string(t.Side)), t.Symbol, t.Quantity,
			formatMoney(t.Price), formatMoney(t.Total), formatMoney(t.Cash))
	}
	return tw.Flush()
}
