// Package models maps detector class indices to label names for the label
// conventions detectors are commonly trained with.
package models

import (
	"github.com/pkg/errors"
)

// ErrUnknownClass is returned for a label or index outside a class set.
var ErrUnknownClass = errors.New("unknown class")

// Family names a label convention.
type Family string

const (
	// FamilyCOCO is the 80 COCO labels with "__background__" at index 0.
	FamilyCOCO Family = "coco"
	// FamilyYOLO is the 80 COCO labels indexed from 0 without background.
	FamilyYOLO Family = "yolo"
	// FamilyVOC is the 20 Pascal VOC labels with "__background__" at index 0.
	FamilyVOC Family = "voc"
)

const background = "__background__"

// ClassSet is an ordered list of labels where a label's position is the
// class index a detector reports.
type ClassSet struct {
	family Family
	labels []string
	index  map[string]int
}

func newClassSet(family Family, labels []string) *ClassSet {
	s := &ClassSet{
		family: family,
		labels: labels,
		index:  make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		s.index[l] = i
	}
	return s
}

// Family returns the label convention of the set.
func (s *ClassSet) Family() Family { return s.family }

// Len returns the number of class indices, background included.
func (s *ClassSet) Len() int { return len(s.labels) }

// Name returns the label of a class index.
func (s *ClassSet) Name(idx int) (string, error) {
	if idx < 0 || idx >= len(s.labels) {
		return "", errors.Wrapf(ErrUnknownClass, "index %d in %s", idx, s.family)
	}
	return s.labels[idx], nil
}

// Index returns the class index of a label.
func (s *ClassSet) Index(name string) (int, error) {
	idx, ok := s.index[name]
	if !ok {
		return -1, errors.Wrapf(ErrUnknownClass, "%q in %s", name, s.family)
	}
	return idx, nil
}

// Indices resolves a list of labels, stopping at the first unknown one.
func (s *ClassSet) Indices(names ...string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, n := range names {
		idx, err := s.Index(n)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

var cocoLabels = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup",
	"fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

var vocLabels = []string{
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat",
	"chair", "cow", "diningtable", "dog", "horse", "motorbike", "person",
	"pottedplant", "sheep", "sofa", "train", "tvmonitor",
}

var classSets = map[Family]*ClassSet{
	FamilyCOCO: newClassSet(FamilyCOCO, append([]string{background}, cocoLabels...)),
	FamilyYOLO: newClassSet(FamilyYOLO, cocoLabels),
	FamilyVOC:  newClassSet(FamilyVOC, append([]string{background}, vocLabels...)),
}

// Classes returns the class set of a family.
func Classes(family Family) (*ClassSet, error) {
	s, ok := classSets[family]
	if !ok {
		return nil, errors.Errorf("unknown class family %q", family)
	}
	return s, nil
}
