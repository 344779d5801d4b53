package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

type recordingLedger struct {
	increments []Key
	failOn     uint
}

func (l *recordingLedger) Lock(context.Context, Key) (*Stock, error) { return nil, nil }

func (l *recordingLedger) Decrement(context.Context, Key, int) (int64, error) { return 1, nil }

func (l *recordingLedger) Increment(_ context.Context, key Key, _ int) error {
	if key.ProductID == l.failOn {
		return errors.New("db down")
	}
	l.increments = append(l.increments, key)
	return nil
}

func TestRestock_AscendingOrder(t *testing.T) {
	ledger := &recordingLedger{}
	err := Restock(context.Background(), ledger, []RestockLine{
		{Key: Key{DistributorID: 1, ProductID: 9}, Quantity: 1},
		{Key: Key{DistributorID: 2, ProductID: 3}, Quantity: 2},
		{Key: Key{DistributorID: 1, ProductID: 3}, Quantity: 0},
		{Key: Key{DistributorID: 1, ProductID: 5}, Quantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, []Key{{2, 3}, {1, 5}, {1, 9}}, ledger.increments, "数量为0的行跳过")
}

func TestRestock_StopsOnError(t *testing.T) {
	ledger := &recordingLedger{failOn: 5}
	err := Restock(context.Background(), ledger, []RestockLine{
		{Key: Key{DistributorID: 1, ProductID: 5}, Quantity: 1},
		{Key: Key{DistributorID: 1, ProductID: 9}, Quantity: 1},
	})
	require.Error(t, err)
	assert.Empty(t, ledger.increments)
}

func TestInsufficientStockError(t *testing.T) {
	err := &InsufficientStockError{ProductID: 1, ProductName: "Amoxicillin", Requested: 3, Available: 2}

	assert.Equal(t, apperrors.KindInsufficientStock, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "Amoxicillin")
	detail, ok := err.Detail().(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2, detail["available"])
}
