// Package notify fans a rendered report out to the configured delivery
// channels.
package notify

import (
	"context"
	"errors"
	"fmt"

	logx "macromon/pkg/logx"
)

// Message is one outgoing report. HTML may be empty for channels that
// only carry plain text.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Channel delivers a message over one transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Service fans out to all registered channels. One failing channel does
// not stop the others.
type Service struct {
	channels []Channel
	log      logx.Logger
}

func New(log logx.Logger, channels ...Channel) *Service {
	return &Service{channels: channels, log: log}
}

func (s *Service) Channels() int { return len(s.channels) }

func (s *Service) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, ch := range s.channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ch.Send(ctx, msg); err != nil {
			s.log.Warn("notification send failed",
				logx.String("channel", ch.Name()),
				logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		s.log.Debug("notification sent",
			logx.String("channel", ch.Name()),
			logx.String("subject", msg.Subject))
	}
	return errors.Join(errs...)
}
