package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
)

type Message struct {
	Subject string
	Text    string
}

func Compose(chk *check.Check, kind notification.Kind) Message {
	last := "never"
	if chk.LastSignalAt != nil {
		last = chk.LastSignalAt.UTC().Format(time.RFC3339)
	}
	every := fmt.Sprintf("%d %s", chk.FrequencyValue, chk.Frequency)
	if chk.FrequencyValue != 1 {
		every += "s"
	}

	var b strings.Builder
	switch kind {
	case notification.KindRecovered:
		fmt.Fprintf(&b, "Check %q is signaling again.\n\nLast signal: %s\n", chk.Name, last)
	default:
		fmt.Fprintf(&b, "Check %q missed its deadline.\n\nExpected a signal every %s.\nLast signal: %s\n", chk.Name, every, last)
	}
	if len(chk.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(chk.Tags, ", "))
	}
	if chk.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", chk.Description)
	}

	subject := "Check " + chk.Name + " failed"
	if kind == notification.KindRecovered {
		subject = "Check " + chk.Name + " recovered"
	}
	return Message{Subject: subject, Text: b.String()}
}
