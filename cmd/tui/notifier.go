package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"ipobot/services/notify"
	"ipobot/services/tracker"
)

// eventMsg is one line of the alert log
type eventMsg struct {
	at   time.Time
	kind string
	text string
}

// stateMsg carries a tracker status change
type stateMsg tracker.State

// programNotifier forwards tracker events into the Bubble Tea program
type programNotifier struct {
	send func(tea.Msg)
}

func (n *programNotifier) post(msg tea.Msg) {
	if n.send != nil {
		n.send(msg)
	}
}

func (n *programNotifier) NotifyPromotion(ctx context.Context, ev tracker.PromotionEvent) error {
	n.post(eventMsg{at: ev.At, kind: "promotion", text: notify.FormatPromotion(ev)})
	return nil
}

func (n *programNotifier) NotifyDayComplete(ctx context.Context, ev tracker.DayCompleteEvent) error {
	n.post(eventMsg{at: ev.At, kind: "day_complete", text: notify.FormatDayComplete(ev)})
	return nil
}

func (n *programNotifier) NotifyStatus(ctx context.Context, ev tracker.StatusEvent) error {
	n.post(stateMsg(ev.State))
	return nil
}
