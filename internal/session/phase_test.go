package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mira/internal/domain"
)

func TestComputePhase_ThresholdsRequireBothCountAndDiversity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		callCount int
		diversity int
		want      domain.SessionPhase
	}{
		{"fresh session", 1, 1, domain.PhaseEarly},
		{"enough calls but no diversity stays early", 10, 1, domain.PhaseEarly},
		{"enough diversity but too few calls stays early", 2, 5, domain.PhaseEarly},
		{"meets both mid thresholds", midCallThreshold, midToolDiversity, domain.PhaseMid},
		{"meets mid but not late diversity", lateCallThreshold, midToolDiversity, domain.PhaseMid},
		{"meets both late thresholds", lateCallThreshold, lateToolDiversity, domain.PhaseLate},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, computePhase(tc.callCount, tc.diversity))
		})
	}
}
