package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPersonalEventRepository_ListForDay(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPersonalEventRepository(db)
	ctx := context.Background()

	rows := newMockRows([][]any{
		{"7", "Parish picnic", nil, "2024-03-02", nil, "Church hall"},
		{"8", "Choir practice", "Bring music", "2024-03-02", "18:30:00", nil},
	})
	db.On("Query", ctx, mock.AnythingOfType("string"), []any{"user-1", "2024-03-02"}).Return(rows, nil)

	got, err := repo.ListForDay(ctx, "user-1", "2024-03-02")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, PersonalEvent{ID: "7", Title: "Parish picnic", EventDate: "2024-03-02", Location: "Church hall"}, got[0])
	assert.Equal(t, "18:30:00", got[1].EventTime)
	assert.Equal(t, "Bring music", got[1].Description)
	assert.Empty(t, got[1].Location)
	db.AssertExpectations(t)
}

func TestPersonalEventRepository_ScanError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPersonalEventRepository(db)

	rows := newMockRows([][]any{{"7"}})
	rows.scanErr = errors.New("bad column")
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	_, err := repo.ListForDay(context.Background(), "user-1", "2024-03-02")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan")
}
