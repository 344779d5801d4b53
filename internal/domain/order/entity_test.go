package order

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

func TestOrder_TotalAmount(t *testing.T) {
	items := []Item{
		{ProductID: 1, Quantity: 3, Price: decimal.RequireFromString("100")},
		{ProductID: 2, Quantity: 1, Price: decimal.RequireFromString("0.99")},
	}

	o := NewOrder("ORDER-ABCDEF12", 1, items, nil, decimal.RequireFromString("20"))
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, decimal.RequireFromString("300.99").Equal(o.Subtotal()))
	assert.True(t, decimal.RequireFromString("280.99").Equal(o.TotalAmount()))

	o.DiscountAmount = decimal.RequireFromString("1000")
	assert.True(t, o.TotalAmount().IsZero(), "总额不为负")
}

func TestOrder_Apply(t *testing.T) {
	tests := []struct {
		from  Status
		event Event
		to    Status
		ok    bool
	}{
		{StatusPending, EventComplete, StatusCompleted, true},
		{StatusPending, EventCancel, StatusCancelled, true},
		{StatusPending, EventProcess, StatusProcessing, true},
		{StatusProcessing, EventCancel, StatusCancelled, true},
		{StatusProcessing, EventComplete, StatusCompleted, true},
		{StatusCompleted, EventRefund, StatusCancelled, true},
		{StatusCompleted, EventCancel, "", false},
		{StatusCancelled, EventCancel, "", false},
		{StatusCancelled, EventComplete, "", false},
		{StatusPending, EventRefund, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			o := &Order{Status: tt.from}
			err := o.Apply(tt.event)
			if !tt.ok {
				require.Error(t, err)
				assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
				assert.Equal(t, tt.from, o.Status, "失败时状态不变")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, o.Status)
		})
	}
}

func TestOrder_CanCancel(t *testing.T) {
	assert.True(t, (&Order{Status: StatusPending}).CanCancel())
	assert.True(t, (&Order{Status: StatusProcessing}).CanCancel())
	assert.False(t, (&Order{Status: StatusCompleted}).CanCancel())
	assert.False(t, (&Order{Status: StatusCancelled}).CanCancel())
}

func TestGenerateCode(t *testing.T) {
	pattern := regexp.MustCompile(`^ORDER-[0-9A-F]{8}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code := GenerateCode()
		require.Regexp(t, pattern, code)
		require.LessOrEqual(t, len(code), 20)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 95)
}
