package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"golang.org/x/time/rate"

	"github.com/BradenHooton/tajnur-auth/internal/models"
	pkglogger "github.com/BradenHooton/tajnur-auth/pkg/logger"
)

const alertSendTimeout = 10 * time.Second

// LockoutNotifier is told when an account's failure window first fills up.
// Implementations must not block the login request.
type LockoutNotifier interface {
	NotifyLockout(account *models.Account, sourceAddress string, until time.Time)
}

// LockoutNotifierFunc adapts a function to LockoutNotifier
type LockoutNotifierFunc func(account *models.Account, sourceAddress string, until time.Time)

func (f LockoutNotifierFunc) NotifyLockout(account *models.Account, sourceAddress string, until time.Time) {
	f(account, sourceAddress, until)
}

// Notifiers fans one lockout out to every non-nil notifier, in order
func Notifiers(notifiers ...LockoutNotifier) LockoutNotifier {
	return LockoutNotifierFunc(func(account *models.Account, sourceAddress string, until time.Time) {
		for _, n := range notifiers {
			if n != nil {
				n.NotifyLockout(account, sourceAddress, until)
			}
		}
	})
}

// SESClient is the subset of the SES API used for alerts
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESAlertService emails the account owner when their account is locked
// out. Sends are asynchronous and share one global token bucket.
type SESAlertService struct {
	client      SESClient
	fromAddress string
	limiter     *rate.Limiter
	logger      *slog.Logger

	// sent is signalled after each send attempt; nil outside tests
	sent chan<- error
}

func NewSESAlertService(region, fromAddress string, perSecond float64, logger *slog.Logger) (*SESAlertService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESAlertService(ses.NewFromConfig(cfg), fromAddress, perSecond, logger), nil
}

func newSESAlertService(client SESClient, fromAddress string, perSecond float64, logger *slog.Logger) *SESAlertService {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &SESAlertService{
		client:      client,
		fromAddress: fromAddress,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:      logger,
	}
}

func (s *SESAlertService) NotifyLockout(account *models.Account, sourceAddress string, until time.Time) {
	if account == nil || account.Email == "" {
		return
	}

	if !s.limiter.Allow() {
		s.logger.Warn("lockout alert dropped by throttle",
			slog.String("username", pkglogger.MaskedUsername(account.Username)))
		return
	}

	input := lockoutEmail(s.fromAddress, account, sourceAddress, until)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertSendTimeout)
		defer cancel()

		_, err := s.client.SendEmail(ctx, input)
		if err != nil {
			s.logger.Error("failed to send lockout alert via SES",
				slog.String("email", pkglogger.SanitizedEmail(account.Email)),
				slog.Any("error", err))
		} else {
			s.logger.Info("lockout alert sent",
				slog.String("email", pkglogger.SanitizedEmail(account.Email)))
		}
		if s.sent != nil {
			s.sent <- err
		}
	}()
}

func lockoutEmail(from string, account *models.Account, sourceAddress string, until time.Time) *ses.SendEmailInput {
	text := fmt.Sprintf(`Hello %s,

Several failed sign-in attempts were made on your account and new sign-ins are paused until %s.

Last attempt came from: %s

If this was you, wait until then and try again. If it was not, contact an administrator.

This is an automated message. Please do not reply to this email.
`, account.Username, until.UTC().Format(time.RFC1123), sourceAddress)

	return &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{account.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Sign-in temporarily locked"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(text),
				},
			},
		},
	}
}
