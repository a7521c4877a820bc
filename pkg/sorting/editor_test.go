package sorting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zahanm/collect-beans/pkg/beancount"
)

func TestNewEditor_PrefillsFirstRow(t *testing.T) {
	e, err := NewEditor(txn("a", "100.00"))
	require.NoError(t, err)

	assert.Equal(t, []Row{{Account: "Expenses:Food", Amount: "100.00"}}, e.Rows())
	assert.Equal(t, "100.00 USD", e.Todo().String())
}

func TestNewEditor_InfersTodoAmount(t *testing.T) {
	drs := txn("a", "42.50")
	drs.Entry.Postings[1].Units.Number = nil

	e, err := NewEditor(drs)
	require.NoError(t, err)
	assert.Equal(t, "42.50", e.Rows()[0].Amount)
}

func TestNewEditor_NoTodoPosting(t *testing.T) {
	drs := txn("a", "1.00")
	drs.Entry.Postings = drs.Entry.Postings[:1]

	_, err := NewEditor(drs)
	assert.ErrorIs(t, err, ErrNoTodoPosting)
}

func TestEditor_AddRowUsesRemainingBalance(t *testing.T) {
	e, err := NewEditor(txn("a", "100.00"))
	require.NoError(t, err)

	require.NoError(t, e.SetAmount(0, "60.00"))
	row := e.AddRow()
	assert.Equal(t, "40.00", row.Amount)
	assert.Empty(t, row.Account)

	require.NoError(t, e.SetAmount(1, "not a number"))
	assert.Equal(t, "40.00", e.AddRow().Amount)
}

func TestEditor_SplitScenario(t *testing.T) {
	tests := []struct {
		name    string
		amounts []string
		wantErr error
	}{
		{"balanced", []string{"60.00", "40.00"}, nil},
		{"short by one", []string{"60.00", "39.00"}, ErrUnbalanced},
		{"within epsilon", []string{"60.00", "39.996"}, nil},
		{"at epsilon", []string{"60.00", "39.995"}, ErrUnbalanced},
		{"thousands separator", []string{"1,000.00", "-900.00"}, nil},
		{"bad amount", []string{"60.00", "forty"}, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEditor(txn("a", "100.00"))
			require.NoError(t, err)

			require.NoError(t, e.SetAmount(0, tt.amounts[0]))
			e.AddRow()
			require.NoError(t, e.SetAccount(1, "Expenses:Household"))
			require.NoError(t, e.SetAmount(1, tt.amounts[1]))

			_, err = e.Submit()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEditor_UnbalancedSubmitSendsNothing(t *testing.T) {
	backend := new(MockBackend)
	q := loadedQueue(t, backend, 1, "a")

	drs, ok := q.Get("a")
	require.True(t, ok)
	drs.Entry.Postings[1].Units = beancount.NewAmount("100.00", "USD")
	e, err := NewEditor(drs)
	require.NoError(t, err)

	require.NoError(t, e.SetAmount(0, "60.00"))
	e.AddRow()
	require.NoError(t, e.SetAccount(1, "Expenses:Household"))
	require.NoError(t, e.SetAmount(1, "39.00"))

	_, err = e.Submit()
	require.ErrorIs(t, err, ErrUnbalanced)

	assert.ErrorIs(t, q.Save(context.Background()), ErrNothingToSave)
	backend.AssertNotCalled(t, "SubmitMods", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditor_SubmitBuildsReplaceMod(t *testing.T) {
	e, err := NewEditor(txn("a", "100.00"))
	require.NoError(t, err)

	require.NoError(t, e.SetAmount(0, "60"))
	e.AddRow()
	require.NoError(t, e.SetAccount(1, "  Expenses:Household "))
	e.SetPayee("Corner Shop")
	e.SetNarration("purchase")

	mod, err := e.Submit()
	require.NoError(t, err)

	assert.Equal(t, "a", mod.ID)
	assert.Equal(t, beancount.ModReplace, mod.Type)
	require.Len(t, mod.Postings, 2)
	assert.Equal(t, "Expenses:Food", mod.Postings[0].Account)
	assert.Equal(t, "60.00 USD", mod.Postings[0].Units.String())
	assert.Equal(t, "Expenses:Household", mod.Postings[1].Account)
	assert.Equal(t, "40.00 USD", mod.Postings[1].Units.String())
	require.NotNil(t, mod.Payee)
	assert.Equal(t, "Corner Shop", *mod.Payee)
	assert.Nil(t, mod.Narration, "unchanged narration is not an override")
	assert.NoError(t, mod.Validate())
}

func TestEditor_EmptyAccount(t *testing.T) {
	drs := txn("a", "5.00")
	drs.AutoCategory = nil

	e, err := NewEditor(drs)
	require.NoError(t, err)
	_, err = e.Submit()
	assert.ErrorIs(t, err, ErrEmptyAccount)
}

func TestEditor_RowBounds(t *testing.T) {
	e, err := NewEditor(txn("a", "5.00"))
	require.NoError(t, err)

	assert.ErrorIs(t, e.RemoveRow(0), ErrLastRow)
	assert.ErrorIs(t, e.SetAccount(3, "x"), ErrRowIndex)
	assert.ErrorIs(t, e.SetAmount(-1, "1"), ErrRowIndex)

	e.AddRow()
	require.NoError(t, e.RemoveRow(0))
	assert.Len(t, e.Rows(), 1)
}

func TestEditor_SkipAndDelete(t *testing.T) {
	e, err := NewEditor(txn("a", "5.00"))
	require.NoError(t, err)

	assert.Equal(t, beancount.Mod{ID: "a", Type: beancount.ModSkip}, e.Skip())
	assert.Equal(t, beancount.Mod{ID: "a", Type: beancount.ModDelete}, e.Delete())
	assert.NoError(t, e.Skip().Validate())
}
