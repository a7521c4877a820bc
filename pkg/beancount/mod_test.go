package beancount

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() Directive {
	return Directive{
		Date:      "2024-03-02",
		Payee:     "Safeway",
		Narration: "groceries",
		Tags:      []string{"home"},
		Postings: []Posting{
			{Account: "Assets:Checking", Units: NewAmount("-100.00", "USD")},
			{Account: TodoAccount, Units: NewAmount("100.00", "USD")},
		},
	}
}

func TestMod_Validate(t *testing.T) {
	payee := "New payee"
	tests := []struct {
		name    string
		mod     Mod
		wantErr bool
	}{
		{"replace with postings", Mod{ID: "1", Type: ModReplace, Postings: []Posting{{Account: "Expenses:Food"}}}, false},
		{"replace with payee only", Mod{ID: "1", Type: ModReplace, Payee: &payee}, false},
		{"empty replace", Mod{ID: "1", Type: ModReplace}, true},
		{"skip", Mod{ID: "1", Type: ModSkip}, false},
		{"delete with postings", Mod{ID: "1", Type: ModDelete, Postings: []Posting{{Account: "X"}}}, true},
		{"missing id", Mod{Type: ModSkip}, true},
		{"unknown type", Mod{ID: "1", Type: "rename"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mod.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMod_Apply(t *testing.T) {
	narration := "weekly shop"

	replaced, ok := Mod{
		ID:   "1",
		Type: ModReplace,
		Postings: []Posting{
			{Account: "Expenses:Groceries", Units: NewAmount("60", "USD")},
			{Account: "Expenses:Household", Units: NewAmount("40", "USD")},
		},
		Narration: &narration,
	}.Apply(sampleEntry())
	require.True(t, ok)
	assert.Equal(t, "weekly shop", replaced.Narration)
	assert.Equal(t, "Safeway", replaced.Payee)
	require.Len(t, replaced.Postings, 3)
	assert.Equal(t, "Assets:Checking", replaced.Postings[0].Account)
	assert.Equal(t, -1, replaced.TodoPosting())

	entry := sampleEntry()
	skipped, ok := Mod{ID: "1", Type: ModSkip}.Apply(entry)
	require.True(t, ok)
	assert.Equal(t, []string{"home", SkipTag}, skipped.Tags)
	assert.Equal(t, []string{"home"}, entry.Tags, "original entry must not change")

	_, ok = Mod{ID: "1", Type: ModDelete}.Apply(sampleEntry())
	assert.False(t, ok)
}

func TestMod_JSONOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Mod{ID: "3", Type: ModSkip})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"3","type":"skip"}`, string(data))

	data, err = json.Marshal(Mod{
		ID:       "4",
		Type:     ModReplace,
		Postings: []Posting{{Account: "Expenses:Food", Units: NewAmount("12.5", "USD")}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"4","type":"replace","postings":[{"account":"Expenses:Food","units":{"number":"12.5","currency":"USD"}}]}`, string(data))
}
