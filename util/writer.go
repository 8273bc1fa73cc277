package util

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mot/tracking"
)

// FrameTracks is one output line: the tracks emitted for a frame.
type FrameTracks struct {
	Frame  int                    `json:"frame"`
	Tracks []tracking.TrackedBbox `json:"tracks"`
}

// TrackWriter writes emitted tracks as JSON Lines.
type TrackWriter struct {
	enc *json.Encoder
}

// NewTrackWriter creates a writer that encodes to w.
func NewTrackWriter(w io.Writer) *TrackWriter {
	return &TrackWriter{enc: json.NewEncoder(w)}
}

// WriteFrame writes one line for the frame. Frames without tracks are
// written with an empty list so that the output stays aligned with the input.
func (w *TrackWriter) WriteFrame(_ context.Context, frame int, tracks []tracking.TrackedBbox) error {
	if tracks == nil {
		tracks = []tracking.TrackedBbox{}
	}
	return errors.Wrapf(w.enc.Encode(FrameTracks{Frame: frame, Tracks: tracks}), "write frame %d", frame)
}
