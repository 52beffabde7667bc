package sector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRefFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refdata.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndLookup(t *testing.T) {
	path := writeRefFile(t, `{
		"sectors": {"BTC/USDT": "l1", "ETHUSDT": "l1", "DOGEUSDT": "meme"},
		"correlations": {"BTCUSDT": {"ETHUSDT": 0.87}}
	}`)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "l1", p.GetSector("BTCUSDT"))
	assert.Equal(t, "l1", p.GetSector("eth/usdt"))
	assert.Equal(t, "", p.GetSector("XRPUSDT"))

	corr, ok := p.Correlation("BTCUSDT", "ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, 0.87, corr)

	// reverse direction resolves through the same row
	corr, ok = p.Correlation("ETH/USDT", "BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, 0.87, corr)

	_, ok = p.Correlation("BTCUSDT", "DOGEUSDT")
	assert.False(t, ok)
}

func TestLoadWithoutCorrelations(t *testing.T) {
	path := writeRefFile(t, `{"sectors": {"BTCUSDT": "l1"}}`)

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "l1", p.GetSector("BTCUSDT"))
	_, ok := p.Correlation("BTCUSDT", "ETHUSDT")
	assert.False(t, ok)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	_, err := Load(writeRefFile(t, `{"sectors": `))
	assert.Error(t, err)

	_, err = Load(writeRefFile(t, `{"other": {}}`))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
