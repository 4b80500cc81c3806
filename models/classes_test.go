package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYOLOClasses(t *testing.T) {
	require.Len(t, YOLOClasses.Classes, 80)
	assert.Equal(t, "person", LookupName(FamilyYOLO, 0))
	assert.Equal(t, "car", LookupName(FamilyYOLO, 2))
	assert.Equal(t, "toothbrush", LookupName(FamilyYOLO, 79))
	assert.Equal(t, 7, YOLOClasses.Index("truck"))
	assert.Equal(t, -1, YOLOClasses.Index("plate"))

	for i, c := range YOLOClasses.Classes {
		assert.Equal(t, i, c.Index)
	}
}

func TestLookupName_Fallback(t *testing.T) {
	assert.Equal(t, "plate", LookupName(FamilyPlate, 0))
	assert.Equal(t, "class_1", LookupName(FamilyPlate, 1))
	assert.Equal(t, "class_-1", LookupName(FamilyYOLO, -1))
	assert.Equal(t, "class_4", LookupName(Family("voc"), 4))
}

func TestClassSet(t *testing.T) {
	set, err := ClassSet(FamilyPlate)
	require.NoError(t, err)
	assert.Equal(t, []string{"plate"}, set.Names())

	_, err = ClassSet(Family("missing"))
	assert.Error(t, err)
}
