package render

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/paulmach/orb"

	"github.com/JettChenT/ek-geo/internal/core/ports"
)

// ContentTypeHTML is the media type Deck output is served as.
const ContentTypeHTML = "text/html; charset=utf-8"

//go:embed deck.html.tmpl
var deckTemplate string

var deckPage = template.Must(template.New("deck").Parse(deckTemplate))

// Deck renders records as a standalone deck.gl scatterplot page centered on
// the records' bounds.
type Deck struct {
	Zoom        float64
	RadiusScale float64
	FillColor   [3]uint8
}

// NewDeck creates a Deck renderer with street-level defaults.
func NewDeck() *Deck {
	return &Deck{Zoom: 15, RadiusScale: 6, FillColor: [3]uint8{255, 140, 0}}
}

type deckView struct {
	Data        template.JS
	Latitude    float64
	Longitude   float64
	Zoom        float64
	Radius      float64
	RadiusScale float64
	FillColor   template.JS
	Count       int
}

// Render implements ports.Renderer.
func (d *Deck) Render(_ context.Context, records []ports.RenderRecord, radius float64) ([]byte, string, error) {
	if records == nil {
		records = []ports.RenderRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, "", fmt.Errorf("marshal records: %w", err)
	}
	// []uint8 would marshal as base64; deck.gl wants a number array.
	color, _ := json.Marshal([]int{int(d.FillColor[0]), int(d.FillColor[1]), int(d.FillColor[2])})

	view := deckView{
		Data:        template.JS(data),
		Zoom:        d.Zoom,
		Radius:      radius,
		RadiusScale: d.RadiusScale,
		FillColor:   template.JS(color),
		Count:       len(records),
	}
	if len(records) > 0 {
		mp := make(orb.MultiPoint, len(records))
		for i, r := range records {
			mp[i] = orb.Point{r.Lon, r.Lat}
		}
		c := mp.Bound().Center()
		view.Latitude, view.Longitude = c.Lat(), c.Lon()
	}

	var buf bytes.Buffer
	if err := deckPage.Execute(&buf, view); err != nil {
		return nil, "", fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), ContentTypeHTML, nil
}
