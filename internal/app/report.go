package app

import (
	"time"

	"slotwatch/internal/domain"
	logx "slotwatch/pkg/logx"
)

// Report summarizes one run. It is filled in stage by stage, so a failed
// run still reports what completed.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration

	Commands      int
	FastForwarded bool
	CommandErrors int
	Recipients    int

	Pruned []domain.Date

	DatesScanned int
	DatesSkipped int
	Retried      int
	Slots        int
	Matched      int

	Eligible     int
	Messages     int
	Delivered    int
	SendFailures int

	PersistErrors int
}

func (r Report) Fields() []logx.Field {
	pruned := make([]string, len(r.Pruned))
	for i, d := range r.Pruned {
		pruned[i] = d.String()
	}
	return []logx.Field{
		logx.Duration("took", r.Duration),
		logx.Int("commands", r.Commands),
		logx.Bool("fast_forwarded", r.FastForwarded),
		logx.Int("recipients", r.Recipients),
		logx.Strings("pruned", pruned),
		logx.Int("dates_scanned", r.DatesScanned),
		logx.Int("dates_skipped", r.DatesSkipped),
		logx.Int("slots", r.Slots),
		logx.Int("matched", r.Matched),
		logx.Int("eligible", r.Eligible),
		logx.Int("messages", r.Messages),
		logx.Int("delivered", r.Delivered),
		logx.Int("send_failures", r.SendFailures),
		logx.Int("persist_errors", r.PersistErrors),
	}
}
