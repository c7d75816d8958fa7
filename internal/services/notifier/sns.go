package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"

	config "github.com/NordCoder/Heartbeat/internal/config/notifier"
	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
)

// SNS subjects are limited to 100 characters.
const snsSubjectMax = 100

var _ notification.Channel = (*SNS)(nil)

// SNS publishes to the topic ARN stored as the subscriber's address.
type SNS struct {
	api snsiface.SNSAPI
}

func NewSNS(api snsiface.SNSAPI) *SNS { return &SNS{api: api} }

// NewSNSClient builds the AWS client. Static keys are optional; without them
// the default credential chain applies. Endpoint overrides the AWS endpoint
// (e.g. localstack).
func NewSNSClient(cfg config.SNS) (snsiface.SNSAPI, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return sns.New(sess), nil
}

func (s *SNS) Send(ctx context.Context, sub *subscriber.Subscriber, chk *check.Check, kind notification.Kind) error {
	msg := Compose(chk, kind)
	subject := msg.Subject
	if len(subject) > snsSubjectMax {
		subject = subject[:snsSubjectMax]
	}
	_, err := s.api.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(sub.Address),
		Subject:  aws.String(subject),
		Message:  aws.String(msg.Text),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(kind)),
			},
			"check": {
				DataType:    aws.String("String"),
				StringValue: aws.String(chk.Name),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
