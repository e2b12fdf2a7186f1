package writer

import (
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uilive"
	"github.com/olekukonko/tablewriter"
)

// ChainResult summarises the processing of one chain.
type ChainResult struct {
	Chain       string
	Tokens      int
	Clean       int
	Problematic int
	Records     int
	Duplicates  int
	Missing     int
	Err         error
}

var summaryHeaders = []string{"Chain", "Tokens", "Clean", "Problematic", "Records", "Duplicates", "Missing", "Status"}

var faint = color.New(color.Faint).SprintFunc()

type SummaryWriter struct {
	*uilive.Writer
	table *tablewriter.Table
}

// Set up ascii table writer
func NewSummaryWriter(out io.Writer) *SummaryWriter {
	sw := &SummaryWriter{Writer: uilive.New()}
	sw.Writer.Out = out
	sw.table = tablewriter.NewWriter(sw.Writer)
	sw.table.SetAutoFormatHeaders(false)
	sw.table.SetAutoWrapText(false)
	formattedHeaders := make([]string, len(summaryHeaders))
	for i, hdr := range summaryHeaders {
		formattedHeaders[i] = color.YellowString(hdr)
	}
	sw.table.SetHeader(formattedHeaders)
	sw.table.SetRowLine(true)
	sw.table.SetCenterSeparator(faint("-"))
	sw.table.SetColumnSeparator(faint("|"))
	sw.table.SetRowSeparator(faint("-"))
	return sw
}

func (sw *SummaryWriter) highlight(n int, c func(format string, a ...interface{}) string) string {
	if n == 0 {
		return faint("0")
	}
	return c(strconv.Itoa(n))
}

func (sw *SummaryWriter) Render(results []ChainResult) {
	sw.table.ClearRows()
	var total ChainResult
	for _, r := range results {
		status := color.GreenString("ok")
		if r.Err != nil {
			status = color.RedString(r.Err.Error())
		}
		sw.table.Append([]string{
			r.Chain,
			strconv.Itoa(r.Tokens),
			strconv.Itoa(r.Clean),
			strconv.Itoa(r.Problematic),
			sw.highlight(r.Records, color.GreenString),
			sw.highlight(r.Duplicates, color.YellowString),
			sw.highlight(r.Missing, color.RedString),
			status,
		})
		total.Tokens += r.Tokens
		total.Clean += r.Clean
		total.Problematic += r.Problematic
		total.Records += r.Records
		total.Duplicates += r.Duplicates
		total.Missing += r.Missing
	}
	sw.table.SetFooter([]string{"Total",
		strconv.Itoa(total.Tokens),
		strconv.Itoa(total.Clean),
		strconv.Itoa(total.Problematic),
		strconv.Itoa(total.Records),
		strconv.Itoa(total.Duplicates),
		strconv.Itoa(total.Missing),
		"",
	})

	sw.table.Render()
	sw.Flush()
}
