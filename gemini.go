package main

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/bodul/minefield/grid"
	"github.com/bodul/minefield/minegen"
	"github.com/bodul/minefield/world"
)

const layoutPrompt = `Tu conçois une section d'un démineur infini.

La section est une grille carrée de %d×%d cases, située aux coordonnées (%d, %d)
du plan infini. Place exactement %d mines, à des positions toutes différentes.

Réponds au format JSON suivant :
{
  "mines": [
    {"x": <colonne, 0 à %d>, "y": <ligne, 0 à %d>},
    ...
  ]
}

Règles :
- Les coordonnées sont locales à la section, l'origine est en haut à gauche.
- Varie la disposition d'une section à l'autre, évite les motifs réguliers.
- Réponds UNIQUEMENT avec le JSON, sans commentaire ni markdown.`

// GeminiFactory asks Gemini for the mine layout of each chunk. Any failure,
// including a malformed answer, surfaces as an error so the world retries.
type GeminiFactory struct {
	gemini *GeminiClient
	size   int
	rule   *minegen.Rule
}

// NewGeminiFactory builds a world.Factory backed by Gemini.
func NewGeminiFactory(gemini *GeminiClient, size int, rule *minegen.Rule) *GeminiFactory {
	return &GeminiFactory{gemini: gemini, size: size, rule: rule}
}

// Create implements world.Factory.
func (f *GeminiFactory) Create(ctx context.Context, at grid.Point) (world.Layout, error) {
	count := f.size
	if f.rule != nil {
		n, err := f.rule.Count(at, f.size)
		if err != nil {
			return world.Layout{}, err
		}
		count = n
	}
	if count == 0 {
		return world.Layout{}, nil
	}

	edge := f.size - 1
	prompt := fmt.Sprintf(layoutPrompt, f.size, f.size, at.X, at.Y, count, edge, edge)
	resp, err := f.gemini.client.Models.GenerateContent(ctx, f.gemini.modelName,
		[]*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(1)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return world.Layout{}, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return world.Layout{}, fmt.Errorf("empty gemini response")
	}
	return parseLayout(text, f.size, count)
}

// parseLayout validates a JSON mine layout. Duplicates are dropped and the
// list is cut to count; any mine outside the chunk rejects the answer.
func parseLayout(text string, size, count int) (world.Layout, error) {
	var raw struct {
		Mines []grid.Point `json:"mines"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return world.Layout{}, fmt.Errorf("parse layout JSON: %w\nraw response: %s", err, text)
	}

	seen := make(map[grid.Point]bool, len(raw.Mines))
	mines := make([]grid.Point, 0, count)
	for _, m := range raw.Mines {
		if !grid.InBounds(m.X, m.Y, size) {
			return world.Layout{}, fmt.Errorf("mine %v outside %dx%d chunk", m, size, size)
		}
		if seen[m] || len(mines) == count {
			continue
		}
		seen[m] = true
		mines = append(mines, m)
	}
	if len(mines) == 0 && count > 0 {
		return world.Layout{}, fmt.Errorf("layout has no mines, want %d", count)
	}
	return world.Layout{Mines: mines}, nil
}
