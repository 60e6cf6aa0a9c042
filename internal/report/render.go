package report

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Renderer formats a Summary for terminal output.
type Renderer struct {
	useColor bool
}

// NewRenderer creates a renderer. useColor enables ANSI styling.
func NewRenderer(useColor bool) *Renderer {
	return &Renderer{useColor: useColor}
}

// Render formats the full summary.
func (r *Renderer) Render(summary *Summary) string {
	var buf strings.Builder

	buf.WriteString(r.header("Key figures"))
	buf.WriteString(r.renderKPIs(summary.KPIs))

	if len(summary.MonthlyTrend) > 0 {
		buf.WriteString(r.header("Monthly trend"))
		buf.WriteString(r.renderMonthlyTrend(summary.MonthlyTrend))
	}

	if len(summary.Segments) > 0 {
		buf.WriteString(r.header("Customer segments"))
		buf.WriteString(r.renderSegments(summary.Segments))
	}

	if len(summary.TopProducts) > 0 {
		buf.WriteString(r.header("Top products by revenue"))
		buf.WriteString(r.renderTopProducts(summary.TopProducts))
	}

	if len(summary.TopCustomers) > 0 {
		buf.WriteString(r.header("Top customers by revenue"))
		buf.WriteString(r.renderTopCustomers(summary.TopCustomers))
	}

	buf.WriteString(r.header("Low stock alerts"))
	if len(summary.LowStock) == 0 {
		buf.WriteString("  No products below the stock threshold.\n")
	} else {
		buf.WriteString(r.renderLowStock(summary.LowStock))
	}

	if len(summary.Volumes) > 0 {
		buf.WriteString(r.header("Warehouse volumes"))
		buf.WriteString(r.renderVolumes(summary.Volumes))
	}

	return buf.String()
}

func (r *Renderer) header(title string) string {
	if r.useColor {
		title = color.CyanString(title)
	}
	return "\n" + title + "\n"
}

func (r *Renderer) renderKPIs(k KPIs) string {
	var buf strings.Builder
	table := r.newTable(&buf, []string{"Metric", "Value"})
	table.Append([]string{"Revenue", fmt.Sprintf("%.2f", k.Revenue)})
	table.Append([]string{"Profit", fmt.Sprintf("%.2f", k.Profit)})
	table.Append([]string{"Margin", fmt.Sprintf("%.1f%%", k.MarginPercent)})
	table.Append([]string{"Orders", fmt.Sprintf("%d", k.Orders)})
	table.Append([]string{"Unique customers", fmt.Sprintf("%d", k.UniqueCustomers)})
	table.Append([]string{"Avg order value", fmt.Sprintf("%.2f", k.AvgOrderValue)})
	table.Render()
	return buf.String()
}

func (r *Renderer) renderMonthlyTrend(rows []MonthRow) string {
	var buf strings.Builder
	table := r.newTable(&buf, []string{"Month", "Revenue", "Orders", "Profit"})
	for _, row := range rows {
		table.Append([]string{
			fmt.Sprintf("%d %s", row.Year, row.Name),
			fmt.Sprintf("%.2f", row.Revenue),
			fmt.Sprintf("%d", row.Orders),
			fmt.Sprintf("%.2f", row.Profit),
		})
	}
	table.Render()
	return buf.String()
}

func (r *Renderer) renderSegments(rows []SegmentRow) string {
	var buf strings.Builder
	table := r.newTable(&buf, []string{"Segment", "Customers", "Revenue", "Profit", "Orders"})
	for _, row := range rows {
		table.Append([]string{
			row.Segment,
			fmt.Sprintf("%d", row.Customers),
			fmt.Sprintf("%.2f", row.Revenue),
			fmt.Sprintf("%.2f", row.Profit),
			fmt.Sprintf("%d", row.Orders),
		})
	}
	table.Render()
	return buf.String()
}

func (r *Renderer) renderTopProducts(rows []ProductRow) string {
	var buf strings.Builder
	table := r.newTable(&buf, []string{"#", "Product", "Category", "Revenue", "Qty", "Profit"})
	for i, row := range rows {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			row.Name,
			row.Category,
			fmt.Sprintf("%.2f", row.Revenue),
			fmt.Sprintf("%d", row.Quantity),
			fmt.Sprintf("%.2f", row.Profit),
		})
	}
	table.Render()
	return buf.String()
}

func (r *Renderer) renderTopCustomers(rows []CustomerRow) string {
	var buf strings.Builder
	table := r.newTable(&buf, []string{"#", "Customer", "Segment", "Revenue", "Orders"})
	for i, row := range rows {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			row.Name,
			row.Segment,
			fmt.Sprintf("%.2f", row.Revenue),
			fmt.Sprintf("%d", row.Orders),
		})
	}
	table.Render()
	return buf.String()
}

func (r *Renderer) renderLowStock(rows []StockRow) string {
	var buf strings.Builder
	table := r.newTable(&buf, []string{"Product", "Category", "Supplier", "On hand", "Stock value"})
	for _, row := range rows {
		onHand := fmt.Sprintf("%d", row.QuantityOnHand)
		if r.useColor && row.QuantityOnHand == 0 {
			onHand = color.RedString(onHand)
		} else if r.useColor {
			onHand = color.YellowString(onHand)
		}
		table.Append([]string{
			row.ProductName,
			row.Category,
			row.SupplierName,
			onHand,
			fmt.Sprintf("%.2f", row.StockValue),
		})
	}
	table.Render()
	return buf.String()
}

func (r *Renderer) renderVolumes(rows []VolumeRow) string {
	var buf strings.Builder
	table := r.newTable(&buf, []string{"Table", "Rows"})
	for _, row := range rows {
		table.Append([]string{row.Table, fmt.Sprintf("%d", row.Rows)})
	}
	table.Render()
	return buf.String()
}

func (r *Renderer) newTable(buf *strings.Builder, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}
