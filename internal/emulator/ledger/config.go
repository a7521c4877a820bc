// Package ledger models the bookkeeping backend: journal files kept in the
// store, the sorting session over the destination file, the ledger checker
// and the simulated importers.
package ledger

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"gopkg.in/yaml.v3"
)

// Config is the backend configuration file.
type Config struct {
	MainFile       string                     `yaml:"main_file"`
	CurrentFile    string                     `yaml:"current_file"`
	Accounts       []string                   `yaml:"accounts"`
	Categories     []Category                 `yaml:"categories"`
	Feeds          map[string][]FeedItem      `yaml:"feeds"`
	OtherImporters []bookkeeper.OtherImporter `yaml:"other_importers"`
	Files          map[string][]SeedEntry     `yaml:"files"`
}

// Category maps a payee pattern to an account. The first matching pattern wins.
type Category struct {
	Pattern string `yaml:"pattern"`
	Account string `yaml:"account"`
}

// FeedItem is a transaction the simulated institution reports for an account.
type FeedItem struct {
	Date      string `yaml:"date"`
	Payee     string `yaml:"payee"`
	Narration string `yaml:"narration"`
	Amount    string `yaml:"amount"`
	Currency  string `yaml:"currency"`
}

// SeedEntry is a transaction in the initial journal files.
type SeedEntry struct {
	Date      string        `yaml:"date"`
	Flag      string        `yaml:"flag"`
	Payee     string        `yaml:"payee"`
	Narration string        `yaml:"narration"`
	Tags      []string      `yaml:"tags"`
	Postings  []SeedPosting `yaml:"postings"`
}

// SeedPosting is a posting in a seed entry. An empty amount is inferred.
type SeedPosting struct {
	Account  string `yaml:"account"`
	Amount   string `yaml:"amount"`
	Currency string `yaml:"currency"`
}

// LoadConfig reads the configuration file.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.MainFile == "" {
		return cfg, fmt.Errorf("config %s: main_file is required", path)
	}
	if cfg.CurrentFile == "" {
		cfg.CurrentFile = cfg.MainFile
	}
	return cfg, nil
}

// Directive converts a seed entry.
func (e SeedEntry) Directive() (beancount.Directive, error) {
	d := beancount.Directive{
		Date:      e.Date,
		Flag:      e.Flag,
		Payee:     e.Payee,
		Narration: e.Narration,
		Tags:      e.Tags,
	}
	for _, p := range e.Postings {
		units := beancount.Amount{Currency: p.Currency}
		if p.Amount != "" {
			n, err := decimal.NewFromString(p.Amount)
			if err != nil {
				return d, fmt.Errorf("entry %s %q: invalid amount %q: %w", e.Date, e.Payee, p.Amount, err)
			}
			units.Number = &n
		}
		d.Postings = append(d.Postings, beancount.Posting{Account: p.Account, Units: units})
	}
	return d, nil
}

// Directive converts a feed item into an entry awaiting categorization.
func (f FeedItem) Directive(account string) (beancount.Directive, error) {
	n, err := decimal.NewFromString(f.Amount)
	if err != nil {
		return beancount.Directive{}, fmt.Errorf("feed item %s %q: invalid amount %q: %w", f.Date, f.Payee, f.Amount, err)
	}
	return beancount.Directive{
		Date:      f.Date,
		Flag:      "!",
		Payee:     f.Payee,
		Narration: f.Narration,
		Postings: []beancount.Posting{
			{Account: account, Units: beancount.Amount{Number: &n, Currency: f.Currency}},
			{Account: beancount.TodoAccount, Units: beancount.Amount{Currency: f.Currency}},
		},
	}, nil
}
