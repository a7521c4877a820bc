package commit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"github.com/zahanm/collect-beans/pkg/db"
	"github.com/zahanm/collect-beans/pkg/pathutil"
	"github.com/zahanm/collect-beans/pkg/progress"
)

// MockBackend is a mock implementation of Backend for testing
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) CommitPreview(ctx context.Context) (*bookkeeper.CommitResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookkeeper.CommitResponse), args.Error(1)
}

func (m *MockBackend) Check(ctx context.Context) (*bookkeeper.CheckResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookkeeper.CheckResponse), args.Error(1)
}

func (m *MockBackend) CommitWrite(ctx context.Context) (*bookkeeper.CommitResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookkeeper.CommitResponse), args.Error(1)
}

// MockRecorder is a mock implementation of Recorder for testing
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordCommit(record db.CommitRecord) error {
	args := m.Called(record)
	return args.Error(0)
}

const (
	before = "2024-03-01 * \"Cafe\"\n  Liabilities:Card  -4.50 USD\n  Equity:TODO\n"
	after  = "2024-03-01 * \"Cafe\"\n  Liabilities:Card  -4.50 USD\n  Expenses:Food\n"
)

var commitResponse = &bookkeeper.CommitResponse{Before: before, After: after}

func TestFlow_Preview(t *testing.T) {
	backend := new(MockBackend)
	backend.On("CommitPreview", mock.Anything).Return(commitResponse, nil)

	f := NewFlow(backend, "2024.beancount")
	p, err := f.Preview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, before, p.Before)
	assert.Contains(t, p.Diff, "--- a/2024.beancount\n")
	assert.Contains(t, p.Diff, "+++ b/2024.beancount\n")
	assert.Contains(t, p.Diff, "-  Equity:TODO\n")
	assert.Contains(t, p.Diff, "+  Expenses:Food\n")
}

func TestUnifiedDiff_NoChange(t *testing.T) {
	diff, err := UnifiedDiff("f", before, before)
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestFlow_WriteRequiresCheck(t *testing.T) {
	backend := new(MockBackend)
	f := NewFlow(backend, "2024.beancount")

	_, err := f.Write(context.Background(), true)
	assert.ErrorIs(t, err, ErrNotChecked)
	backend.AssertNotCalled(t, "CommitWrite", mock.Anything)
}

func TestFlow_CheckFailureBlocksWrite(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Check", mock.Anything).Return(&bookkeeper.CheckResponse{
		Check: false,
		Errors: map[string]string{
			"f00": "Transaction does not balance",
			"a11": "Invalid account",
		},
	}, nil)

	f := NewFlow(backend, "2024.beancount")
	result, err := f.Check(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, []CheckError{
		{Hash: "a11", Message: "Invalid account"},
		{Hash: "f00", Message: "Transaction does not balance"},
	}, result.Errors)
	assert.False(t, f.CanWrite())

	_, err = f.Write(context.Background(), false)
	assert.ErrorIs(t, err, ErrCheckFailed)
	backend.AssertNotCalled(t, "CommitWrite", mock.Anything)
}

func TestFlow_ForcedWrite(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Check", mock.Anything).Return(&bookkeeper.CheckResponse{Check: false, Errors: map[string]string{"x": "bad"}}, nil)
	backend.On("CommitWrite", mock.Anything).Return(commitResponse, nil).Once()

	recorder := new(MockRecorder)
	recorder.On("RecordCommit", mock.MatchedBy(func(r db.CommitRecord) bool {
		return r.Forced && !r.CheckPassed && r.CheckErrors == 1 && !r.SnapshotPath.Valid
	})).Return(nil).Once()

	f := NewFlow(backend, "2024.beancount", WithHistory(recorder))
	_, err := f.Check(context.Background())
	require.NoError(t, err)

	result, err := f.Write(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, result.Forced)
	assert.Empty(t, result.SnapshotPath)

	backend.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestFlow_WriteSnapshotsAndResetsCheck(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Check", mock.Anything).Return(&bookkeeper.CheckResponse{Check: true}, nil)
	backend.On("CommitPreview", mock.Anything).Return(commitResponse, nil).Once()
	backend.On("CommitWrite", mock.Anything).Return(commitResponse, nil).Once()

	dir := t.TempDir()
	repo := beancount.NewFileSystemRepository(pathutil.New(pathutil.Config{DataDir: dir}))
	at := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	f := NewFlow(backend, "ledger/2024.beancount", WithSnapshots(repo), WithClock(func() time.Time { return at }))
	_, err := f.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, f.CanWrite())

	result, err := f.Write(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.Forced)
	assert.Equal(t, after, result.After)
	require.NotEmpty(t, result.SnapshotPath)
	assert.True(t, strings.HasPrefix(result.SnapshotPath, dir))

	saved, err := repo.Read(result.SnapshotPath)
	require.NoError(t, err)
	assert.Contains(t, saved, before)

	assert.Nil(t, f.LastCheck())
	_, err = f.Write(context.Background(), false)
	assert.ErrorIs(t, err, ErrNotChecked)
	backend.AssertExpectations(t)
}

func TestFlow_CheckTransportErrorTracksProgress(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Check", mock.Anything).Return(nil, errors.New("connection refused"))

	check := progress.NewTracker()
	f := NewFlow(backend, "2024.beancount", WithProgress(check, progress.NewTracker()))

	_, err := f.Check(context.Background())
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, progress.Error, check.State())
	assert.Nil(t, f.LastCheck())
}

func TestFlow_WriteFailureKeepsCheck(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Check", mock.Anything).Return(&bookkeeper.CheckResponse{Check: true}, nil)
	backend.On("CommitWrite", mock.Anything).Return(nil, &bookkeeper.APIError{StatusCode: 500, Message: "disk full"})

	f := NewFlow(backend, "2024.beancount")
	_, err := f.Check(context.Background())
	require.NoError(t, err)

	_, err = f.Write(context.Background(), false)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, progress.Error, f.WriteProgress().State())
	assert.True(t, f.CanWrite())
}
