// Package bookkeeper provides a client for the bookkeeping backend's REST API
// and the types it exchanges.
package bookkeeper

import "github.com/zahanm/collect-beans/pkg/beancount"

// CollectMode selects what an importer run fetches.
type CollectMode string

const (
	ModeTransactions CollectMode = "transactions"
	ModeBalance      CollectMode = "balance"
)

// ProgressResponse represents the response from /sort/progress.
type ProgressResponse struct {
	DestinationFile *string  `json:"destination_file"`
	MainFile        string   `json:"main_file"`
	JournalFiles    []string `json:"journal_files"`
}

// NextResponse represents the response from /sort/next.
type NextResponse struct {
	ToSort      []beancount.DirectiveForSort `json:"to_sort"`
	Accounts    []string                     `json:"accounts"`
	CountTotal  int                          `json:"count_total"`
	CountSorted int                          `json:"count_sorted"`
}

// SubmitRequest is the body POSTed to /sort/next.
type SubmitRequest struct {
	Sorted []beancount.Mod `json:"sorted"`
}

// SortedResponse represents the response from /sort/sorted.
type SortedResponse struct {
	Sorted []beancount.DirectiveForSort `json:"sorted"`
	Mods   map[string]beancount.Mod     `json:"mods"`
}

// LinkResponse represents the response from /sort/link.
type LinkResponse struct {
	Results []beancount.DirectiveForSort `json:"results"`
}

// CommitResponse represents the before/after contents of the destination file.
type CommitResponse struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// CheckResponse represents the ledger checker's verdict. Errors are keyed by
// a hash of the failing directive's location and message.
type CheckResponse struct {
	Check  bool              `json:"check"`
	Errors map[string]string `json:"errors"`
}

// ImporterAccount is one account fed by an importer.
type ImporterAccount struct {
	Name     string `json:"name" yaml:"name"`
	PlaidID  string `json:"plaid_id" yaml:"plaid_id"`
	Currency string `json:"currency" yaml:"currency"`
}

// Importer is a configured data source the backend can pull from.
type Importer struct {
	Name          string            `json:"name" yaml:"name"`
	InstitutionID string            `json:"institution_id" yaml:"institution_id"`
	AccessToken   string            `json:"access_token,omitempty" yaml:"-"`
	Accounts      []ImporterAccount `json:"accounts" yaml:"accounts"`
}

// AccountNames returns the ledger account names fed by the importer.
func (i Importer) AccountNames() []string {
	names := make([]string, 0, len(i.Accounts))
	for _, acc := range i.Accounts {
		names = append(names, acc.Name)
	}
	return names
}

// CollectRunRequest is the body POSTed to /collect/run.
// Start and End are ignored by the backend in balance mode.
type CollectRunRequest struct {
	Mode     CollectMode `json:"mode"`
	Importer Importer    `json:"importer"`
	Start    string      `json:"start,omitempty"` // YYYY-MM-DD
	End      string      `json:"end,omitempty"`   // YYYY-MM-DD
}

// CollectRunResponse represents the outcome of one importer run.
type CollectRunResponse struct {
	Importer   string   `json:"importer"`
	Returncode int      `json:"returncode"`
	Errors     []string `json:"errors"`
}

// BackupResponse represents the response from /collect/backup.
type BackupResponse struct {
	Contents struct {
		Old string `json:"old"`
		New string `json:"new"`
	} `json:"contents"`
	Timestamps struct {
		LastBackup float64 `json:"last_backup"` // seconds since epoch
	} `json:"timestamps"`
}

// LastImportedResponse maps account names to the date of their last
// imported entry (YYYY-MM-DD), or nil when never imported.
type LastImportedResponse struct {
	Last map[string]*string `json:"last"`
}

// OtherImporter is an importer that is not driven through /collect/run.
type OtherImporter struct {
	Name       string `json:"name"`
	Downloader string `json:"downloader"`
	Accounts   []struct {
		Name     string `json:"name"`
		Currency string `json:"currency"`
	} `json:"accounts"`
	Importer     *string `json:"importer,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}

// OtherImportersResponse represents the response from /collect/other-importers.
type OtherImportersResponse struct {
	Importers []OtherImporter `json:"importers"`
}

// ReloadResponse represents the response from /config/reload.
type ReloadResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error body from the backend.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
