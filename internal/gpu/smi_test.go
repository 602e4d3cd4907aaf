package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceList(t *testing.T) {
	lines := []string{
		"0, NVIDIA GeForce RTX 3090",
		"1, Tesla T4",
	}
	devices, err := parseDeviceList(lines)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, Device{Index: 0, Name: "NVIDIA GeForce RTX 3090"}, devices[0])
	assert.Equal(t, Device{Index: 1, Name: "Tesla T4"}, devices[1])
}

func TestParseDeviceListNameWithComma(t *testing.T) {
	devices, err := parseDeviceList([]string{"0, NVIDIA A100, 80GB PCIe"})
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "NVIDIA A100, 80GB PCIe", devices[0].Name)
}

func TestParseDeviceListMalformed(t *testing.T) {
	_, err := parseDeviceList([]string{"garbage"})
	require.Error(t, err)

	_, err = parseDeviceList([]string{"x, name"})
	require.Error(t, err)
}

func TestParseSample(t *testing.T) {
	m, err := parseSample("87, 10240, 24576")
	require.NoError(t, err)
	assert.Equal(t, 87.0, m.UtilPercent)
	assert.Equal(t, 10240.0, m.VRAMUsedMB)
	assert.Equal(t, 24576.0, m.VRAMTotalMB)
}

func TestParseSampleMalformed(t *testing.T) {
	_, err := parseSample("87, 10240")
	require.Error(t, err)

	_, err = parseSample("87, [N/A], 24576")
	require.Error(t, err)
}

func TestParseComputeCaps(t *testing.T) {
	caps, err := parseComputeCaps([]string{"8.6", "7.5"})
	require.NoError(t, err)
	assert.Equal(t, []float64{8.6, 7.5}, caps)

	_, err = parseComputeCaps([]string{"n/a"})
	require.Error(t, err)
}
