package rest

import (
	"time"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	"github.com/oshokin/uwb-tracker/internal/engine"
)

type positionView struct {
	TagID    int       `json:"tagId"`
	FullName string    `json:"fullName"`
	EmpID    string    `json:"empId"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Gas      float64   `json:"gas"`
	Tier     string    `json:"tier"`
	LastSeen time.Time `json:"lastSeen"`
}

type anchorView struct {
	AnchorID string     `json:"anchorId"`
	Name     string     `json:"name"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen"`
}

type debugView struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
	Topic      string    `json:"topic"`
	Payload    string    `json:"payload"`
	Outcome    string    `json:"outcome"`
}

type credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toPositionViews(positions []domain.Position) []positionView {
	views := make([]positionView, 0, len(positions))

	for _, p := range positions {
		views = append(views, positionView{
			TagID:    p.TagID,
			FullName: p.DisplayName,
			EmpID:    p.ExternalID,
			X:        p.X,
			Y:        p.Y,
			Gas:      p.Hazard,
			Tier:     p.Tier,
			LastSeen: p.LastSeen,
		})
	}

	return views
}

func toAnchorViews(anchors []domain.Anchor) []anchorView {
	views := make([]anchorView, 0, len(anchors))

	for _, a := range anchors {
		views = append(views, anchorView{
			AnchorID: a.AnchorID,
			Name:     a.Name,
			X:        a.X,
			Y:        a.Y,
			Online:   a.Online,
			LastSeen: a.LastSeen,
		})
	}

	return views
}

func toDebugViews(entries []engine.DebugEntry) []debugView {
	views := make([]debugView, 0, len(entries))

	for _, e := range entries {
		views = append(views, debugView{
			ID:         e.ID.String(),
			ReceivedAt: e.ReceivedAt,
			Topic:      e.Topic,
			Payload:    e.Payload,
			Outcome:    string(e.Outcome),
		})
	}

	return views
}
