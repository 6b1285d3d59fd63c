// Package report renders probe events for people and for scripts.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/ghodss/yaml"
	"github.com/itchyny/gojq"
	"github.com/nexodus-io/hbprobe/internal/heartbeat"
	"github.com/nexodus-io/hbprobe/internal/probe"
	"github.com/nexodus-io/hbprobe/internal/sockerr"
	"github.com/nexodus-io/hbprobe/internal/transcript"
	"golang.org/x/term"
	"golang.org/x/time/rate"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the supported output formats.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

type Options struct {
	Format string
	// Filter is a jq expression applied to JSON payloads.
	Filter string
	// MaxPrintRate limits printed packets per second, 0 prints all of them.
	MaxPrintRate float64
	Summary      bool
	NoColor      bool
	// Spinner animates the reply wait on the diagnostic stream.
	Spinner    bool
	Transcript *transcript.Transcript
}

// Printer implements probe.Reporter. Packets go to out; in json and yaml
// formats lifecycle lines go to diag so out stays machine readable.
type Printer struct {
	out  io.Writer
	diag io.Writer
	opts Options

	query   *gojq.Query
	limiter *rate.Limiter
	spinner *spinner.Spinner

	info, good, warn, bad *color.Color

	senders    map[string]*senderStats
	suppressed int
	filtered   int
}

var _ probe.Reporter = (*Printer)(nil)

func New(out, diag io.Writer, opts Options) (*Printer, error) {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	switch opts.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("%w: unknown output format %q, use one of %s", probe.ErrInvalidConfig, opts.Format, strings.Join(Formats, ", "))
	}
	if opts.MaxPrintRate < 0 {
		return nil, fmt.Errorf("%w: max print rate %v is negative", probe.ErrInvalidConfig, opts.MaxPrintRate)
	}

	p := &Printer{
		out:     out,
		diag:    out,
		opts:    opts,
		info:    color.New(color.FgCyan),
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
		senders: map[string]*senderStats{},
	}
	if opts.Format != FormatText {
		p.diag = diag
	}
	if opts.NoColor {
		for _, c := range []*color.Color{p.info, p.good, p.warn, p.bad} {
			c.DisableColor()
		}
	}
	if opts.Filter != "" {
		query, err := gojq.Parse(opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid filter %q: %v", probe.ErrInvalidConfig, opts.Filter, err)
		}
		p.query = query
	}
	if opts.MaxPrintRate > 0 {
		burst := int(opts.MaxPrintRate)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.MaxPrintRate), burst)
	}
	if opts.Spinner {
		p.spinner = spinner.New(spinner.CharSets[70], 100*time.Millisecond, spinner.WithWriter(diag))
	}
	return p, nil
}

// Interactive reports whether f is a terminal.
func Interactive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (p *Printer) line(c *color.Color, format string, args ...any) {
	p.stopSpinner()
	_, _ = c.Fprintf(p.diag, format+"\n", args...)
}

func (p *Printer) stopSpinner() {
	if p.spinner != nil && p.spinner.Active() {
		p.spinner.Stop()
	}
}

func (p *Printer) Bound(local net.Addr, fallbackCause error) {
	switch {
	case errors.Is(fallbackCause, probe.ErrPortShared):
		p.line(p.warn, "Requested port %s is already bound by another socket and is now shared via SO_REUSEPORT; replies may be delivered to the other socket", local)
	case fallbackCause != nil:
		p.line(p.warn, "Requested port unavailable (%v), fell back to ephemeral port %s", fallbackCause, local)
		if remediation := sockerr.Explain(fallbackCause); remediation != "" {
			p.remediation(remediation)
		}
	}
	p.line(p.info, "Bound UDP socket on %s", local)
}

func (p *Printer) Reflexive(server string, addr netip.AddrPort) {
	p.line(p.info, "Reflexive address reported by %s: %s", server, addr)
}

func (p *Printer) Sent(attempt int, to net.Addr, msg heartbeat.Message, size int) {
	payload, err := json.Marshal(msg)
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", msg))
	}
	p.line(p.good, "Sent heartbeat #%d to %s (%d bytes): %s", attempt, to, size, payload)
}

func (p *Printer) AckWaiting(attempt int, timeout time.Duration) {
	if p.spinner != nil {
		p.spinner.Suffix = fmt.Sprintf(" Waiting up to %s for a reply...", timeout)
		p.spinner.Start()
		return
	}
	p.line(p.info, "Waiting up to %s for a reply...", timeout)
}

func (p *Printer) AckTimeout(attempt int, timeout time.Duration) {
	p.line(p.warn, "No reply within %s (attempt %d)", timeout, attempt)
}

func (p *Printer) NoReply(attempts int) {
	p.line(p.warn, "No reply after %d attempt(s), continuing", attempts)
}

func (p *Printer) Listening(local net.Addr, d time.Duration) {
	if d == 0 {
		p.line(p.info, "Listening on %s until interrupted...", local)
		return
	}
	p.line(p.info, "Listening on %s for %s...", local, d)
}

func (p *Printer) Packet(state probe.State, pkt heartbeat.Inbound, decoded heartbeat.Decoded) {
	p.stopSpinner()
	entry := newEntry(state, pkt, decoded)
	p.senderStats(entry.From).add(entry, decoded.IsJSON())
	if p.opts.Transcript != nil {
		p.opts.Transcript.Append(entry)
	}

	if p.query != nil && decoded.IsJSON() {
		results, err := p.runFilter(decoded.JSON)
		switch {
		case err != nil:
			p.line(p.bad, "Filter error on packet from %s: %v", entry.From, err)
		case len(results) == 0:
			p.filtered++
			return
		case len(results) == 1:
			entry.JSON = results[0]
		default:
			entry.JSON = results
		}
	}
	if p.limiter != nil && !p.limiter.Allow() {
		p.suppressed++
		return
	}

	switch p.opts.Format {
	case FormatJSON:
		p.writeRecord(entry, false)
	case FormatYAML:
		p.writeRecord(entry, true)
	default:
		p.writeText(state, entry, decoded)
	}
}

func (p *Printer) writeText(state probe.State, entry transcript.Entry, decoded heartbeat.Decoded) {
	label := "Packet"
	if state == probe.StateAckWait {
		label = "Reply"
	}
	var checksum string
	if decoded.Framed {
		verdict := "ok"
		if !decoded.ChecksumValid {
			verdict = "mismatch"
		}
		checksum = fmt.Sprintf(" checksum=0x%08X (%s)", decoded.Checksum, verdict)
	}

	if decoded.IsJSON() {
		body := decoded.Text
		if p.query != nil {
			if b, err := json.Marshal(entry.JSON); err == nil {
				body = string(b)
			}
		}
		_, _ = p.good.Fprintf(p.out, "%s from %s%s: %s\n", label, entry.From, checksum, body)
		return
	}
	_, _ = p.warn.Fprintf(p.out, "%s from %s%s (raw, %d bytes): %s\n", label, entry.From, checksum, entry.Size, decoded.Text)
}

func (p *Printer) writeRecord(entry transcript.Entry, asYAML bool) {
	b, err := json.Marshal(entry)
	if err != nil {
		p.line(p.bad, "Failed to encode packet from %s: %v", entry.From, err)
		return
	}
	if asYAML {
		y, err := yaml.JSONToYAML(b)
		if err != nil {
			p.line(p.bad, "Failed to encode packet from %s: %v", entry.From, err)
			return
		}
		_, _ = fmt.Fprintf(p.out, "---\n%s", y)
		return
	}
	_, _ = fmt.Fprintln(p.out, string(b))
}

// runFilter evaluates the filter on v. gojq reads json.Number values as
// int or *big.Int, so integers beyond 2^53 stay exact.
func (p *Printer) runFilter(v any) ([]any, error) {
	var results []any
	iter := p.query.Run(v)
	for {
		next, ok := iter.Next()
		if !ok {
			return results, nil
		}
		if err, isErr := next.(error); isErr {
			return nil, err
		}
		results = append(results, next)
	}
}

func (p *Printer) Problem(state probe.State, err error) {
	p.line(p.bad, "Error while %s: %v", activity(state), err)
	if remediation := sockerr.Explain(err); remediation != "" {
		p.remediation(remediation)
	}
}

func (p *Printer) remediation(text string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		_, _ = fmt.Fprintf(p.diag, "  %s\n", l)
	}
}

func (p *Printer) Closed(stats probe.Stats) {
	p.stopSpinner()
	if stats.Interrupted {
		p.line(p.warn, "Interrupted")
	}
	p.line(p.info, "Socket closed after %s: sent %d, received %d (%d not JSON), %d socket error(s)",
		stats.Duration.Round(time.Millisecond), stats.Sent, stats.Received, stats.DecodeErrors, stats.SocketErrors)
	if p.filtered > 0 {
		p.line(p.info, "%d packet(s) dropped by filter", p.filtered)
	}
	if p.suppressed > 0 {
		p.line(p.warn, "%d packet(s) not printed due to the print rate limit", p.suppressed)
	}
	if p.opts.Summary {
		p.renderSummary(p.diag)
	}
	if p.opts.Transcript != nil {
		if err := p.opts.Transcript.Store(); err != nil {
			p.line(p.bad, "Failed to write transcript %s: %v", p.opts.Transcript, err)
		} else {
			p.line(p.info, "Transcript written to %s", p.opts.Transcript.File)
		}
	}
}

// Fatal renders the error that ended the run, with remediation when the
// platform error is known.
func (p *Printer) Fatal(err error) {
	p.stopSpinner()
	var bindErr *probe.BindError
	var sendErr *probe.SendError
	switch {
	case errors.As(err, &bindErr):
		_, _ = p.bad.Fprintf(p.diag, "Bind failed: %v\n", err)
	case errors.As(err, &sendErr):
		_, _ = p.bad.Fprintf(p.diag, "Send failed: %v\n", err)
	default:
		_, _ = p.bad.Fprintf(p.diag, "Error: %v\n", err)
	}
	if remediation := sockerr.Explain(err); remediation != "" {
		p.remediation(remediation)
	}
}

func activity(state probe.State) string {
	switch state {
	case probe.StateBound:
		return "preparing the socket"
	case probe.StateHeartbeatSent:
		return "sending"
	case probe.StateAckWait:
		return "waiting for a reply"
	case probe.StateListening:
		return "listening"
	}
	return strings.ToLower(state.String())
}

func newEntry(state probe.State, pkt heartbeat.Inbound, decoded heartbeat.Decoded) transcript.Entry {
	entry := transcript.Entry{
		ReceivedAt: pkt.ReceivedAt,
		Phase:      state.String(),
		Size:       len(pkt.Data),
		Framed:     decoded.Framed,
	}
	if pkt.From != nil {
		entry.From = pkt.From.String()
	}
	if decoded.Framed {
		sum, valid := decoded.Checksum, decoded.ChecksumValid
		entry.Checksum = &sum
		entry.ChecksumValid = &valid
	}
	if decoded.IsJSON() {
		entry.JSON = decoded.JSON
	} else {
		entry.Text = decoded.Text
		entry.Error = decoded.Err.Error()
	}
	return entry
}
