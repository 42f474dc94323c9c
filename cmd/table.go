package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/smazurov/framestamp/internal/libav"
	"github.com/smazurov/framestamp/internal/transcode"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, fancy bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if fancy {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderSummary renders one line per carried stream followed by the run totals.
func renderSummary(s *transcode.Summary, fancy bool) string {
	headers := []string{"Stream", "Output", "Frames", "Rejected", "Watermark"}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(s.Streams)+1)
	for _, st := range s.Streams {
		stream := strconv.Itoa(st.Input)
		if st.Best {
			stream += "*"
		}
		rows = append(rows, []string{
			stream,
			strconv.Itoa(st.Output),
			strconv.Itoa(st.Frames),
			strconv.Itoa(st.Failed),
			watermarkCell(st.Identified, st.RecognizedID),
		})
	}
	id, ok := s.Identity()
	rows = append(rows, []string{
		"total", "",
		strconv.Itoa(s.TotalFrames()),
		strconv.Itoa(s.TotalFailed()),
		watermarkCell(ok, id),
	})

	status := "complete"
	if s.Cancelled {
		status = "cancelled"
	}
	title := fmt.Sprintf("%s %s -> %s (%s, %s)", s.Mode, s.Input, s.Output, status, s.Duration.Round(time.Millisecond))
	return title + "\n" + renderTable(headers, rows, aligns, fancy)
}

// renderCapabilities renders the check results.
func renderCapabilities(caps []libav.Capability, fancy bool) string {
	headers := []string{"Kind", "Name", "Status", "Detail"}
	rows := make([][]string, 0, len(caps))
	for _, c := range caps {
		status := "ok"
		if !c.OK {
			status = "missing"
		}
		rows = append(rows, []string{c.Kind, c.Name, status, c.Detail})
	}
	return renderTable(headers, rows, nil, fancy)
}

func watermarkCell(identified bool, id int) string {
	if !identified {
		return "-"
	}
	return strconv.Itoa(id)
}

func useColor(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
