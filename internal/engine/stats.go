package engine

// Stats aggregates session statistics across turns.
type Stats struct {
	TurnsPlayed            int     `json:"turns_played"`
	BuildingsConstructed   int     `json:"buildings_constructed"`
	MoneySpent             float64 `json:"money_spent"`
	TaxesCollected         float64 `json:"taxes_collected"`
	MaxPopulation          int     `json:"max_population"`
	TechnologiesResearched int     `json:"technologies_researched"`
	LoansTaken             int     `json:"loans_taken"`
	UnemploymentStreak     int     `json:"unemployment_streak"`
	ContentmentStreak      int     `json:"contentment_streak"`
}

// updateStats refreshes derived statistics and raises threshold alerts
// after the subsystem passes of a turn.
func (c *City) updateStats() {
	if p := c.pop.TotalPopulation(); p > c.stats.MaxPopulation {
		c.stats.MaxPopulation = p
	}

	if c.pop.UnemploymentRate() > 15 {
		c.stats.UnemploymentStreak++
		if c.stats.UnemploymentStreak == 3 {
			c.addAlert(SeverityWarning, "Unemployment has exceeded 15% for three turns")
		}
	} else {
		c.stats.UnemploymentStreak = 0
	}

	if c.pop.AverageSatisfaction() >= 80 {
		c.stats.ContentmentStreak++
		if c.stats.ContentmentStreak == 10 {
			c.addAlert(SeverityAchievement, "Residents have been highly satisfied for ten turns")
		}
	} else {
		c.stats.ContentmentStreak = 0
	}
}
