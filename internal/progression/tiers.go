package progression

// Tier is a feature gate opened by a long enough streak.
type Tier struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Threshold int    `json:"threshold"`
}

const (
	PleaseThreshold = 14
	ReallyThreshold = 42
)

var tiers = []Tier{
	{ID: "please", Name: "P.L.E.A.S.E.", Threshold: PleaseThreshold},
	{ID: "really", Name: "R.E.A.L.L.Y.", Threshold: ReallyThreshold},
}

// Tiers returns the unlockable tiers in threshold order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// Unlocked returns every tier open at the given streak length.
func Unlocked(days int) []Tier {
	var out []Tier
	for _, t := range tiers {
		if days >= t.Threshold {
			out = append(out, t)
		}
	}
	return out
}

// DaysUntil returns how many more streak days are needed to open t.
func (s State) DaysUntil(t Tier) int {
	if n := t.Threshold - s.ConsecutiveDays; n > 0 {
		return n
	}
	return 0
}

// IsUnlocked reports whether t is open for s.
func (s State) IsUnlocked(t Tier) bool {
	return s.ConsecutiveDays >= t.Threshold
}

func withUnlocks(s State) State {
	s.PleaseUnlocked = s.ConsecutiveDays >= PleaseThreshold
	s.ReallyUnlocked = s.ConsecutiveDays >= ReallyThreshold
	return s
}
