package download

import (
	"context"

	"github.com/mediadrop/mediadrop/internal/model"
)

// HistoryStore persists the durable record of each terminal job
type HistoryStore interface {
	Insert(ctx context.Context, record *model.HistoryRecord) error
}
