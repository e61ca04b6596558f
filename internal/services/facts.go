package services

import (
	"math/rand"
	"sync"
	"time"

	"planethero/internal/models"
)

var ecoFacts = []models.EcoFact{
	{
		Title:       "Every minute, one million plastic bottles are purchased worldwide!",
		Description: "By reducing single-use plastics, you can help save marine life and reduce ocean pollution.",
	},
	{
		Title:       "A single tree can absorb 48 pounds of CO2 per year!",
		Description: "Planting trees is one of the most effective ways to combat climate change.",
	},
	{
		Title:       "Turning off the tap while brushing teeth saves 8 gallons of water!",
		Description: "Small water-saving habits can make a huge environmental impact.",
	},
}

// EcoFacts returns a copy of the fact list
func EcoFacts() []models.EcoFact {
	return append([]models.EcoFact(nil), ecoFacts...)
}

// FactPicker selects facts uniformly at random. It is safe for concurrent use.
type FactPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFactPicker creates a FactPicker. A nil source is seeded from the clock.
func NewFactPicker(src rand.Source) *FactPicker {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &FactPicker{rng: rand.New(src)}
}

// Pick returns one fact
func (p *FactPicker) Pick() models.EcoFact {
	p.mu.Lock()
	i := p.rng.Intn(len(ecoFacts))
	p.mu.Unlock()
	return ecoFacts[i]
}
