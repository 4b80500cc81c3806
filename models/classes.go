// Package models - Label sets for the detectors.
package models

import "fmt"

// Family identifies the label convention a model was trained with.
type Family string

const (
	// FamilyYOLO is the 80 COCO classes, zero-based, no background class.
	FamilyYOLO Family = "yolo"
	// FamilyPlate is a single-class licence plate detector.
	FamilyPlate Family = "plate"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet ties a family to its full list of labels.
type OutputClassSet struct {
	// Family identifier.
	Family Family
	// Classes in model index order.
	Classes []OutputClass
}

// Names returns the labels in index order.
func (s OutputClassSet) Names() []string {
	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Name
	}
	return names
}

// Index returns the index of the named class, or -1.
func (s OutputClassSet) Index(name string) int {
	for _, c := range s.Classes {
		if c.Name == name {
			return c.Index
		}
	}
	return -1
}

// NewClassSet numbers names from zero.
func NewClassSet(family Family, names []string) OutputClassSet {
	classes := make([]OutputClass, len(names))
	for i, name := range names {
		classes[i] = OutputClass{Index: i, Name: name}
	}
	return OutputClassSet{Family: family, Classes: classes}
}

var cocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe",
	"backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard",
	"sports ball", "kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake",
	"chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop",
	"mouse", "remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// YOLOClasses is the 80 COCO classes as indexed by YOLOv5/v8 exports.
var YOLOClasses = NewClassSet(FamilyYOLO, cocoNames)

// PlateClasses is the label set of single-class plate detectors.
var PlateClasses = NewClassSet(FamilyPlate, []string{"plate"})

// AllClassSets collects every OutputClassSet in one place.
var AllClassSets = []OutputClassSet{
	YOLOClasses,
	PlateClasses,
}

// ClassSet returns the set registered for family.
func ClassSet(family Family) (OutputClassSet, error) {
	for _, set := range AllClassSets {
		if set.Family == family {
			return set, nil
		}
	}
	return OutputClassSet{}, fmt.Errorf("family %q not registered", family)
}

// LookupName returns the class name for a given family and index.
// If index is out of range, it returns "class_<idx>".
func LookupName(family Family, idx int) string {
	set, err := ClassSet(family)
	if err == nil && idx >= 0 && idx < len(set.Classes) {
		return set.Classes[idx].Name
	}
	return fmt.Sprintf("class_%d", idx)
}
