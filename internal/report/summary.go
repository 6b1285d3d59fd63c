package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nexodus-io/hbprobe/internal/transcript"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/exp/maps"
)

type senderStats struct {
	Packets  int
	JSON     int
	Raw      int
	Bytes    uint64
	LastSeen time.Time
}

func (s *senderStats) add(e transcript.Entry, isJSON bool) {
	s.Packets++
	if isJSON {
		s.JSON++
	} else {
		s.Raw++
	}
	s.Bytes += uint64(e.Size)
	if e.ReceivedAt.After(s.LastSeen) {
		s.LastSeen = e.ReceivedAt
	}
}

func (p *Printer) senderStats(from string) *senderStats {
	s, ok := p.senders[from]
	if !ok {
		s = &senderStats{}
		p.senders[from] = s
	}
	return s
}

func (p *Printer) renderSummary(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetBorders(tablewriter.Border{
		Left:   true,
		Right:  true,
		Top:    false,
		Bottom: false,
	})
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Sender", "Packets", "JSON", "Raw", "Bytes", "Last Seen"})

	senders := maps.Keys(p.senders)
	sort.Strings(senders)
	for _, from := range senders {
		s := p.senders[from]
		table.Append([]string{
			from,
			fmt.Sprint(s.Packets),
			fmt.Sprint(s.JSON),
			fmt.Sprint(s.Raw),
			humanize.Bytes(s.Bytes),
			humanize.Time(s.LastSeen),
		})
	}
	table.Render()
}
