package export

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Document is the YAML export layout.
type Document struct {
	Account  string         `yaml:"account"`
	Interval string         `yaml:"interval"`
	Since    string         `yaml:"since,omitempty"`
	Items    []DocumentItem `yaml:"items"`
}

// DocumentItem is one item and its offers in the window.
type DocumentItem struct {
	ItemID int             `yaml:"item_id"`
	Name   string          `yaml:"name"`
	Profit int64           `yaml:"profit"`
	Offers []DocumentOffer `yaml:"offers"`
}

// DocumentOffer is a single offer row.
type DocumentOffer struct {
	UUID     string `yaml:"uuid"`
	Buy      bool   `yaml:"buy"`
	Date     string `yaml:"date"`
	Slot     int    `yaml:"slot"`
	Quantity int    `yaml:"quantity"`
	Total    int    `yaml:"total"`
	Price    int    `yaml:"price"`
	State    string `yaml:"state"`
}

// NewDocument builds the YAML layout for trades.
func NewDocument(trades Trades) Document {
	doc := Document{
		Account:  trades.Account,
		Interval: trades.Interval,
		Since:    formatDate(trades.Since),
		Items:    []DocumentItem{},
	}
	for _, s := range trades.sections() {
		item := DocumentItem{
			ItemID: s.item.ItemID,
			Name:   s.item.ItemName,
			Profit: s.profit,
			Offers: make([]DocumentOffer, 0, len(s.offers)),
		}
		for _, o := range s.offers {
			item.Offers = append(item.Offers, DocumentOffer{
				UUID:     o.UUID,
				Buy:      o.IsBuy,
				Date:     formatDate(o.Time),
				Slot:     o.Slot,
				Quantity: o.CurrentQuantityInTrade,
				Total:    o.TotalQuantityInTrade,
				Price:    o.Price,
				State:    string(o.State),
			})
		}
		doc.Items = append(doc.Items, item)
	}
	return doc
}

// WriteYAML writes NewDocument(trades) with two-space indentation.
func WriteYAML(w io.Writer, trades Trades) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(trades)); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}
	return nil
}
