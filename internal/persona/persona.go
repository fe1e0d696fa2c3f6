package persona

// Persona is a spending-behaviour archetype. The set is closed: every cluster
// id outside the fitted four resolves to UnknownPersona.
type Persona int

const (
	UnknownPersona Persona = iota - 1
	DisciplinedPlanner
	ExperienceSeeker
	SpontaneousSpender
	RoutineEssentialist
)

// Resolve maps a cluster id to its persona. It is total over all ids.
func Resolve(id ClusterID) Persona {
	switch p := Persona(id); p {
	case DisciplinedPlanner, ExperienceSeeker, SpontaneousSpender, RoutineEssentialist:
		return p
	default:
		return UnknownPersona
	}
}

// String returns the human-readable label.
func (p Persona) String() string {
	switch p {
	case DisciplinedPlanner:
		return "Disciplined Planner"
	case ExperienceSeeker:
		return "Experience Seeker"
	case SpontaneousSpender:
		return "Spontaneous Spender"
	case RoutineEssentialist:
		return "Routine Essentialist"
	default:
		return "Unknown Persona"
	}
}
