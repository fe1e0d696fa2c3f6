package persona

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		id   ClusterID
		want Persona
		name string
	}{
		{0, DisciplinedPlanner, "Disciplined Planner"},
		{1, ExperienceSeeker, "Experience Seeker"},
		{2, SpontaneousSpender, "Spontaneous Spender"},
		{3, RoutineEssentialist, "Routine Essentialist"},
		{4, UnknownPersona, "Unknown Persona"},
		{-1, UnknownPersona, "Unknown Persona"},
		{-42, UnknownPersona, "Unknown Persona"},
		{ClusterID(math.MaxInt32), UnknownPersona, "Unknown Persona"},
		{ClusterID(math.MinInt32), UnknownPersona, "Unknown Persona"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.id)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.name, got.String())
		})
	}
}
