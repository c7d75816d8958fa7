package subscriber

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
)

type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
	ChannelSNS     Channel = "sns"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelWebhook, ChannelSNS:
		return true
	}
	return false
}

type Subscriber struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Channel   Channel    `json:"channel"`
	Address   string     `json:"address"`
	Secret    string     `json:"-"`
	TagFilter check.Tags `json:"tag_filter"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Matches: an empty filter receives every check, otherwise at least one
// tag has to be shared with the check.
func (s *Subscriber) Matches(tags check.Tags) bool {
	if !s.Active {
		return false
	}
	if len(s.TagFilter) == 0 {
		return true
	}
	return s.TagFilter.Intersects(tags)
}

func (s *Subscriber) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &check.ValidationError{Field: "name", Reason: "required"}
	}
	if !s.Channel.Valid() {
		return &check.ValidationError{Field: "channel", Reason: fmt.Sprintf("unknown channel %q", s.Channel)}
	}
	switch s.Channel {
	case ChannelEmail:
		if _, err := mail.ParseAddress(s.Address); err != nil {
			return &check.ValidationError{Field: "address", Reason: "not an email address"}
		}
	case ChannelWebhook:
		u, err := url.Parse(s.Address)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &check.ValidationError{Field: "address", Reason: "not an http(s) url"}
		}
	case ChannelSNS:
		if !strings.HasPrefix(s.Address, "arn:") {
			return &check.ValidationError{Field: "address", Reason: "not a topic arn"}
		}
	}
	return nil
}
