package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "CREATED", want: StatusCreated},
		{in: "PLACED", want: StatusPlaced},
		{in: "PACKED", want: StatusPacked},
		{in: "OUT_FOR_DELIVERY", want: StatusOutForDelivery},
		{in: "DELIVERED", want: StatusDelivered},
		{in: "SHIPPED", wantErr: true},
		{in: "packed", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusNext(t *testing.T) {
	next, ok := StatusCreated.Next()
	require.True(t, ok)
	assert.Equal(t, StatusPlaced, next)

	next, ok = StatusOutForDelivery.Next()
	require.True(t, ok)
	assert.Equal(t, StatusDelivered, next)

	_, ok = StatusDelivered.Next()
	assert.False(t, ok)

	_, ok = Status("BOGUS").Next()
	assert.False(t, ok)
}

func TestAllowedFrom(t *testing.T) {
	assert.ElementsMatch(t, []Status{StatusCreated}, allowedFrom(StatusCreated))
	assert.ElementsMatch(t, []Status{StatusPacked, StatusPlaced}, allowedFrom(StatusPacked))
	assert.ElementsMatch(t, []Status{StatusDelivered, StatusOutForDelivery}, allowedFrom(StatusDelivered))
}
