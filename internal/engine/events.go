package engine

import (
	"fmt"

	"go.uber.org/zap"
)

// baseEventChance is the per-turn probability of a random event before
// the difficulty frequency multiplier.
const baseEventChance = 0.15

// EventOption is one decision the player can take on a pending event.
type EventOption struct {
	Label   string             `json:"label"`
	Effects map[string]float64 `json:"effects"`
}

// Event is one random city event. Effects apply when the event expires
// undecided; choosing an option applies that option's effects instead.
// Effect keys: money, population, satisfaction, or any ledger resource.
type Event struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	Effects       map[string]float64 `json:"effects"`
	Options       []EventOption      `json:"options,omitempty"`
	MinPopulation int                `json:"min_population,omitempty"`
}

// PendingEvent is an event awaiting a decision.
type PendingEvent struct {
	Event Event `json:"event"`
	Turn  int   `json:"turn"`
}

func defaultEvents() []Event {
	return []Event{
		{
			ID:          "district_fire",
			Title:       "District Fire",
			Description: "A fire broke out in a residential district.",
			Effects:     map[string]float64{"money": -800, "satisfaction": -3},
			Options: []EventOption{
				{Label: "Fund extra fire crews", Effects: map[string]float64{"money": -1500, "satisfaction": 2}},
				{Label: "Let volunteers handle it", Effects: map[string]float64{"money": -400, "satisfaction": -5}},
			},
		},
		{
			ID:            "epidemic",
			Title:         "Epidemic",
			Description:   "A seasonal illness is spreading through the city.",
			Effects:       map[string]float64{"population": -25, "satisfaction": -5},
			MinPopulation: 500,
			Options: []EventOption{
				{Label: "Open emergency clinics", Effects: map[string]float64{"money": -2000, "satisfaction": 1}},
				{Label: "Issue a health advisory", Effects: map[string]float64{"population": -40, "satisfaction": -7}},
			},
		},
		{
			ID:          "government_grant",
			Title:       "Government Grant",
			Description: "The regional government approved a development grant.",
			Effects:     map[string]float64{"money": 2000},
		},
		{
			ID:          "economic_boom",
			Title:       "Economic Boom",
			Description: "Local businesses report record earnings.",
			Effects:     map[string]float64{"money": 1500, "satisfaction": 2},
		},
		{
			ID:          "city_festival",
			Title:       "City Festival",
			Description: "Residents organized a street festival downtown.",
			Effects:     map[string]float64{"money": -300, "satisfaction": 5},
		},
		{
			ID:          "tax_protest",
			Title:       "Tax Protest",
			Description: "A crowd is protesting tax policy outside city hall.",
			Effects:     map[string]float64{"satisfaction": -4},
			Options: []EventOption{
				{Label: "Offer a one-time rebate", Effects: map[string]float64{"money": -1000, "satisfaction": 2}},
				{Label: "Stand firm", Effects: map[string]float64{"satisfaction": -6}},
			},
		},
		{
			ID:          "heat_wave",
			Title:       "Heat Wave",
			Description: "A prolonged heat wave is straining the city.",
			Effects:     map[string]float64{"satisfaction": -2, "water": -30, "energy": -20},
		},
		{
			ID:            "new_investors",
			Title:         "New Investors",
			Description:   "An investment group wants to settle in the city.",
			Effects:       map[string]float64{"money": 1200, "population": 15},
			MinPopulation: 300,
		},
	}
}

// maybeRandomEvent expires any undecided event, then rolls for a new
// one at the difficulty-scaled frequency.
func (c *City) maybeRandomEvent() {
	if c.pending != nil {
		c.applyEffects(c.pending.Event.Effects)
		c.addAlert(SeverityInfo, fmt.Sprintf("%s passed without a decision", c.pending.Event.Title))
		c.pending = nil
	}
	if c.rand.Float64() >= baseEventChance*c.difficulty.EventFrequency {
		return
	}
	pop := c.pop.TotalPopulation()
	var candidates []Event
	for _, ev := range c.events {
		if pop >= ev.MinPopulation {
			candidates = append(candidates, ev)
		}
	}
	if len(candidates) == 0 {
		return
	}
	idx := int(c.rand.Float64() * float64(len(candidates)))
	if idx >= len(candidates) {
		idx = len(candidates) - 1
	}
	ev := candidates[idx]
	c.pending = &PendingEvent{Event: ev, Turn: c.turn}
	c.addAlert(SeverityWarning, fmt.Sprintf("%s: %s", ev.Title, ev.Description))
	c.logger.Info("random event", zap.String("event", ev.ID))
}

// PendingEvent returns the event awaiting a decision, if any.
func (c *City) PendingEvent() (PendingEvent, bool) {
	if c.pending == nil {
		return PendingEvent{}, false
	}
	return *c.pending, true
}

// ResolveEvent applies the chosen option of the pending event. Events
// without options resolve with their base effects regardless of choice.
func (c *City) ResolveEvent(option int) (bool, string) {
	if c.pending == nil {
		return false, "no event awaiting a decision"
	}
	ev := c.pending.Event
	effects := ev.Effects
	if len(ev.Options) > 0 {
		if option < 0 || option >= len(ev.Options) {
			return false, fmt.Sprintf("event has %d options", len(ev.Options))
		}
		effects = ev.Options[option].Effects
		c.addAlert(SeverityInfo, fmt.Sprintf("%s: %s", ev.Title, ev.Options[option].Label))
	} else {
		c.addAlert(SeverityInfo, fmt.Sprintf("%s acknowledged", ev.Title))
	}
	c.applyEffects(effects)
	c.pending = nil
	return true, ""
}

// applyEffects routes event and research effect keys into the owning
// subsystems. Unknown keys fall through to the resource ledger, which
// rejects names it does not track.
func (c *City) applyEffects(effects map[string]float64) {
	for key, value := range effects {
		switch key {
		case "population":
			c.pop.AddResidents(int(value))
		case "satisfaction":
			c.pop.AdjustSatisfaction(value)
		default:
			c.ledger.ModifyResource(key, value)
		}
	}
}
