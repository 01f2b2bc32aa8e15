package forestz

import (
	"io"
	"os"
	"sync"
)

// Formatter renders a tree to text.
type Formatter interface {
	Format(tree Tree) (string, error)
}

// FormatterFunc adapts a function into a Formatter.
type FormatterFunc func(tree Tree) (string, error)

// Format calls f(tree).
func (f FormatterFunc) Format(tree Tree) (string, error) {
	return f(tree)
}

// MakeWriter returns the writer a formatted tree is written to.
// It is called once per tree.
type MakeWriter func() io.Writer

// Printer formats and writes trees synchronously on the caller's goroutine.
// Writes are serialized so concurrent trees never interleave.
type Printer struct {
	formatter  Formatter
	makeWriter MakeWriter
	mu         sync.Mutex
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(formatter Formatter, w io.Writer) *Printer {
	return NewPrinterFunc(formatter, func() io.Writer { return w })
}

// NewPrinterFunc returns a Printer resolving its writer per tree.
func NewPrinterFunc(formatter Formatter, makeWriter MakeWriter) *Printer {
	if formatter == nil {
		formatter = Pretty{}
	}
	return &Printer{formatter: formatter, makeWriter: makeWriter}
}

// StdoutPrinter pretty prints to stdout.
func StdoutPrinter() *Printer {
	return NewPrinterFunc(Pretty{}, func() io.Writer { return os.Stdout })
}

// StderrPrinter pretty prints to stderr.
func StderrPrinter() *Printer {
	return NewPrinterFunc(Pretty{}, func() io.Writer { return os.Stderr })
}

// Process formats and writes the tree. On failure the tree is handed back
// in the Report.
func (p *Printer) Process(tree Tree) error {
	buf, err := p.formatter.Format(tree)
	if err != nil {
		return NewReport(tree, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.makeWriter(), buf); err != nil {
		return NewReport(tree, err)
	}
	return nil
}
