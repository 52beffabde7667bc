// Package sector loads symbol classification data from a JSON file. The file
// carries a sector map and, optionally, a pairwise correlation matrix:
//
//	{
//	  "sectors":      {"BTCUSDT": "l1", "ETHUSDT": "l1"},
//	  "correlations": {"BTCUSDT": {"ETHUSDT": 0.87}}
//	}
package sector

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"tradeguard/internal/domain"
	"tradeguard/internal/logger"
)

type Provider struct {
	sectors      map[string]string
	correlations map[string]map[string]float64
}

// Load parses the reference file. A missing correlations block is fine; a
// missing sectors block means the file is not what we expect.
func Load(path string) (*Provider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sector map: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("sector map %s is not valid JSON", path)
	}

	doc := gjson.ParseBytes(raw)
	sectorsNode := doc.Get("sectors")
	if !sectorsNode.Exists() {
		return nil, fmt.Errorf("sector map %s has no sectors block", path)
	}

	p := &Provider{
		sectors:      make(map[string]string),
		correlations: make(map[string]map[string]float64),
	}
	sectorsNode.ForEach(func(key, value gjson.Result) bool {
		p.sectors[domain.NormalizeSymbol(key.String())] = value.String()
		return true
	})
	doc.Get("correlations").ForEach(func(key, value gjson.Result) bool {
		from := domain.NormalizeSymbol(key.String())
		row := make(map[string]float64)
		value.ForEach(func(k, v gjson.Result) bool {
			row[domain.NormalizeSymbol(k.String())] = v.Float()
			return true
		})
		p.correlations[from] = row
		return true
	})

	logger.Infof("sector: loaded %d sector mappings, %d correlation rows from %s",
		len(p.sectors), len(p.correlations), path)
	return p, nil
}

// GetSector returns the symbol's sector, or "" when unmapped.
func (p *Provider) GetSector(symbol string) string {
	return p.sectors[domain.NormalizeSymbol(symbol)]
}

// Correlation looks the pair up in both directions.
func (p *Provider) Correlation(a, b string) (float64, bool) {
	a, b = domain.NormalizeSymbol(a), domain.NormalizeSymbol(b)
	if row, ok := p.correlations[a]; ok {
		if v, ok := row[b]; ok {
			return v, true
		}
	}
	if row, ok := p.correlations[b]; ok {
		if v, ok := row[a]; ok {
			return v, true
		}
	}
	return 0, false
}
