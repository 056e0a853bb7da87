package budget

// Limits caps how much background context is sent with a request
type Limits struct {
	MaxDocuments          int
	MaxDocumentCharacters int
	MaxCompletedTasks     int
	MaxPendingTasks       int
	MaxProjects           int
}

// Tier names the capacity class a model falls into
type Tier string

const (
	TierGenerous     Tier = "generous"
	TierMedium       Tier = "medium"
	TierSmall        Tier = "small"
	TierConservative Tier = "conservative"
)

var tierLimits = map[Tier]Limits{
	TierGenerous:     {MaxDocuments: 30, MaxDocumentCharacters: 800, MaxCompletedTasks: 20, MaxPendingTasks: 30, MaxProjects: 15},
	TierMedium:       {MaxDocuments: 20, MaxDocumentCharacters: 600, MaxCompletedTasks: 15, MaxPendingTasks: 20, MaxProjects: 10},
	TierSmall:        {MaxDocuments: 15, MaxDocumentCharacters: 500, MaxCompletedTasks: 10, MaxPendingTasks: 15, MaxProjects: 8},
	TierConservative: {MaxDocuments: 10, MaxDocumentCharacters: 500, MaxCompletedTasks: 5, MaxPendingTasks: 10, MaxProjects: 5},
}

// TierFor maps a model's optimal history length to its tier
func TierFor(historyLength int) Tier {
	switch {
	case historyLength >= 80:
		return TierGenerous
	case historyLength >= 50:
		return TierMedium
	case historyLength >= 40:
		return TierSmall
	default:
		return TierConservative
	}
}

// ForHistoryLength returns the caps for a model with the given optimal history length
func ForHistoryLength(historyLength int) Limits {
	return tierLimits[TierFor(historyLength)]
}
