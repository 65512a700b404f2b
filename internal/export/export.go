// Package export renders an account's trade history as CSV, XLSX or YAML.
// Exports are write-only views; nothing here reads them back.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// Format names an export encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown export format")

// dateLayout is how offer times appear in every format.
const dateLayout = "2006-01-02 15:04:05"

// ParseFormat converts a case-insensitive format name. "yml" is accepted as
// an alias for yaml.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Trades is the input to every writer.
type Trades struct {
	Account string

	// Interval is the human-readable name of the selected time window,
	// e.g. "All" or "Session".
	Interval string

	// Since drops offers older than it. The zero time keeps everything.
	Since time.Time

	Items []*types.Item
}

// section is one item's slice of the export: the offers inside the window
// and the profit they realize.
type section struct {
	item   *types.Item
	offers []*types.OfferEvent
	profit int64
}

// sections filters every item to the window, dropping items with no offers
// left.
func (t Trades) sections() []section {
	var out []section
	for _, it := range t.Items {
		if it == nil {
			continue
		}
		offers := inWindow(it.History, t.Since)
		if len(offers) == 0 {
			continue
		}
		out = append(out, section{item: it, offers: offers, profit: profitOf(offers)})
	}
	return out
}

func inWindow(history []*types.OfferEvent, since time.Time) []*types.OfferEvent {
	var out []*types.OfferEvent
	for _, o := range history {
		if o == nil || o.Time.Before(since) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// Write encodes trades to w in the given format.
func Write(w io.Writer, format Format, trades Trades) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, trades)
	case FormatXLSX:
		return WriteXLSX(w, trades)
	case FormatYAML:
		return WriteYAML(w, trades)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
