package twilio

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
)

type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func (c Config) Validate() error {
	if c.AccountSID == "" || c.AuthToken == "" {
		return errors.New("twilio credentials are required")
	}
	if c.FromNumber == "" {
		return errors.New("twilio from number is required")
	}
	return nil
}

// Client places calls and sends SMS through the Twilio REST API
type Client struct {
	client *twilio.RestClient
	from   string
	logger *zap.Logger
}

var _ repositories.Telephony = (*Client)(nil)

func New(config Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})

	return &Client{client: client, from: config.FromNumber, logger: logger}, nil
}

// PlaceCall starts an outbound call that plays the given TwiML
func (c *Client) PlaceCall(ctx context.Context, to, twiml string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetTwiml(twiml)

	resp, err := c.client.Api.CreateCall(params)
	if err != nil {
		c.logger.Error("Twilio call failed", zap.String("to", to), zap.Error(err))
		return "", fmt.Errorf("%w: failed to create call: %v", entities.ErrGatewayRejected, err)
	}

	sid := deref(resp.Sid)
	c.logger.Info("Twilio call created", zap.String("to", to), zap.String("call_sid", sid))
	return sid, nil
}

// SendSMS sends a text message
func (c *Client) SendSMS(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send sms: %v", entities.ErrGatewayRejected, err)
	}

	return deref(resp.Sid), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
