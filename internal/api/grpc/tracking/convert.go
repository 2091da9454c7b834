package tracking

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
)

const (
	positionsField = "positions"
	anchorsField   = "anchors"
)

var errMissingField = errors.New("missing field")

// EncodePositions renders positions as {"positions": [...]}.
func EncodePositions(positions []domain.Position) (*structpb.Struct, error) {
	items := make([]any, 0, len(positions))

	for _, p := range positions {
		items = append(items, map[string]any{
			"tagId":    p.TagID,
			"fullName": p.DisplayName,
			"empId":    p.ExternalID,
			"x":        p.X,
			"y":        p.Y,
			"gas":      p.Hazard,
			"tier":     p.Tier,
			"lastSeen": p.LastSeen.UTC().Format(time.RFC3339Nano),
		})
	}

	return structpb.NewStruct(map[string]any{positionsField: items})
}

// EncodeAnchors renders anchors as {"anchors": [...]}. lastSeen is null for
// anchors that were never heard.
func EncodeAnchors(anchors []domain.Anchor) (*structpb.Struct, error) {
	items := make([]any, 0, len(anchors))

	for _, a := range anchors {
		var lastSeen any
		if a.LastSeen != nil {
			lastSeen = a.LastSeen.UTC().Format(time.RFC3339Nano)
		}

		items = append(items, map[string]any{
			"anchorId": a.AnchorID,
			"name":     a.Name,
			"x":        a.X,
			"y":        a.Y,
			"online":   a.Online,
			"lastSeen": lastSeen,
		})
	}

	return structpb.NewStruct(map[string]any{anchorsField: items})
}

// DecodePositions reverses EncodePositions.
func DecodePositions(s *structpb.Struct) ([]domain.Position, error) {
	items, err := list(s, positionsField)
	if err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, len(items))

	for _, item := range items {
		fields := item.GetStructValue().GetFields()

		lastSeen, err := parseTime(fields["lastSeen"])
		if err != nil {
			return nil, err
		}

		positions = append(positions, domain.Position{
			TagID:       int(fields["tagId"].GetNumberValue()),
			DisplayName: fields["fullName"].GetStringValue(),
			ExternalID:  fields["empId"].GetStringValue(),
			X:           fields["x"].GetNumberValue(),
			Y:           fields["y"].GetNumberValue(),
			Hazard:      fields["gas"].GetNumberValue(),
			Tier:        fields["tier"].GetStringValue(),
			LastSeen:    lastSeen,
		})
	}

	return positions, nil
}

// DecodeAnchors reverses EncodeAnchors.
func DecodeAnchors(s *structpb.Struct) ([]domain.Anchor, error) {
	items, err := list(s, anchorsField)
	if err != nil {
		return nil, err
	}

	anchors := make([]domain.Anchor, 0, len(items))

	for _, item := range items {
		fields := item.GetStructValue().GetFields()

		anchor := domain.Anchor{
			AnchorSite: domain.AnchorSite{
				AnchorID: fields["anchorId"].GetStringValue(),
				Name:     fields["name"].GetStringValue(),
				X:        fields["x"].GetNumberValue(),
				Y:        fields["y"].GetNumberValue(),
			},
			Online: fields["online"].GetBoolValue(),
		}

		if raw := fields["lastSeen"].GetStringValue(); raw != "" {
			ts, err := parseTime(fields["lastSeen"])
			if err != nil {
				return nil, err
			}

			anchor.LastSeen = &ts
		}

		anchors = append(anchors, anchor)
	}

	return anchors, nil
}

func list(s *structpb.Struct, field string) ([]*structpb.Value, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMissingField, field)
	}

	return v.GetListValue().GetValues(), nil
}

func parseTime(v *structpb.Value) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse lastSeen: %w", err)
	}

	return ts, nil
}
