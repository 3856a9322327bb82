package mstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputNameSingleImage(t *testing.T) {
	name, err := OutputName("CoralSea", "TrueColour",
		[]string{"SENSOR/20170812T003031_20170812T003034_T55KDV"})
	require.NoError(t, err)
	assert.Equal(t, "CoralSea_TrueColour_55KDV_201708-n1", name)
}

func TestOutputNameMultiImage(t *testing.T) {
	ids := []string{
		"SENSOR/20180103T002659_20180103T002702_T55KDV",
		"SENSOR/20170812T003031_20170812T003034_T55KDV",
		"SENSOR/20171120T003029_20171120T003031_T55KEV",
	}
	name, err := OutputName("CoralSea", "DeepFalse", ids)
	require.NoError(t, err)

	// Codes deduped in first-occurrence order; dates by lexicographic
	// sort of the zero-padded YYYYMM tokens.
	assert.Equal(t, "CoralSea_DeepFalse_55KDV-55KEV_201708-201801-n3", name)
}

func TestOutputNameDedupesCodes(t *testing.T) {
	ids := []string{
		"SENSOR/20170812T003031_20170812T003034_T55KDV",
		"SENSOR/20170901T003031_20170901T003034_T55KDV",
	}
	name, err := OutputName("x", "Shallow", ids)
	require.NoError(t, err)
	assert.Equal(t, "x_Shallow_55KDV_201708-201709-n2", name)
}

func TestOutputNameEmptyInput(t *testing.T) {
	_, err := OutputName("x", "Shallow", nil)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestOutputNameBadIdentifier(t *testing.T) {
	_, err := OutputName("x", "Shallow", []string{"garbage"})
	assert.Error(t, err)
}
