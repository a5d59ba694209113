package store

import "github.com/calloutapp/callout/internal/model"

// NopJournal is a no-op resolution store used by one-shot commands that do
// not need persistence.
type NopJournal struct{}

func NewNopJournal() *NopJournal { return &NopJournal{} }

func (*NopJournal) Record(model.Resolution) error { return nil }

func (*NopJournal) Lookup(string) (*model.Resolution, error) { return nil, nil }

func (*NopJournal) Recent(int) ([]model.Resolution, error) { return nil, nil }
