package games

const (
	GameTimesTable = "times-table-sprint"
	GameMathPuzzle = "math-puzzle"
	GameFractions  = "fraction-fun"
)

type Game struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	GradeLevel  string `json:"grade_level"`
	Subject     string `json:"subject"`
	Difficulty  string `json:"difficulty"`
}

var catalog = []Game{
	{
		ID:          GameTimesTable,
		Name:        "Times Table Sprint",
		Description: "Solve multiplication facts against the clock.",
		GradeLevel:  "5-8",
		Subject:     "Math",
		Difficulty:  "medium",
	},
	{
		ID:          GameMathPuzzle,
		Name:        "Math Puzzle",
		Description: "Combine the given numbers to reach the target.",
		GradeLevel:  "6-8",
		Subject:     "Math",
		Difficulty:  "hard",
	},
	{
		ID:          GameFractions,
		Name:        "Fraction Fun",
		Description: "Compare fractions and put them in order.",
		GradeLevel:  "5-7",
		Subject:     "Math",
		Difficulty:  "easy",
	},
}

// Catalog returns a copy of the available games.
func Catalog() []Game {
	out := make([]Game, len(catalog))
	copy(out, catalog)
	return out
}

func Known(id string) bool {
	for _, g := range catalog {
		if g.ID == id {
			return true
		}
	}
	return false
}
