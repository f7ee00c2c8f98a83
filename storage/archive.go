package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// StandingsKey is the object key of a tournament's archived standings.
func StandingsKey(tournamentID int) string {
	return fmt.Sprintf("tournaments/%d/standings.json", tournamentID)
}

// StandingsArchiver writes final standings documents to object storage.
type StandingsArchiver struct {
	uploader FileUploader
	log      *zap.Logger
}

func NewStandingsArchiver(uploader FileUploader, log *zap.Logger) *StandingsArchiver {
	return &StandingsArchiver{uploader: uploader, log: log}
}

// Archive uploads doc as JSON and returns its public URL. Re-archiving
// overwrites the previous document.
func (a *StandingsArchiver) Archive(ctx context.Context, tournamentID int, doc interface{}) (string, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode standings of tournament %d: %w", tournamentID, err)
	}
	key := StandingsKey(tournamentID)
	res, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	a.log.Info("standings archived",
		zap.Int("tournament_id", tournamentID),
		zap.String("key", res.Key),
		zap.String("location", res.Location),
	)
	return res.Location, nil
}
