package peerrating

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshcore/trustengine/internal/identity"
)

func TestRateOrdering(t *testing.T) {
	ctx := context.Background()
	eval := New()

	mistrusted, err := eval.Rate(ctx, identity.Identity{CommType: identity.CommMistrusted})
	require.NoError(t, err)
	require.Equal(t, identity.RatingMistrust, mistrusted)

	pep, err := eval.Rate(ctx, identity.Identity{CommType: identity.CommPEP})
	require.NoError(t, err)
	require.True(t, pep.AtLeast(identity.RatingReliable))

	pepConfirmed, err := eval.Rate(ctx, identity.Identity{CommType: identity.CommPEP, Confirmed: true})
	require.NoError(t, err)
	require.True(t, pepConfirmed.AtLeast(pep))
}
