package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
	"golang.org/x/time/rate"
)

const (
	sendTimeout = 15 * time.Second
	// implicitTLSPort is the SMTPS port; every other port starts plain and upgrades with STARTTLS when offered.
	implicitTLSPort = 465
)

// SMTPConfig is the transport configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// SendsPerMinute paces sends across the process. <= 0 disables pacing.
	SendsPerMinute int
}

// SMTPSender sends mail through an authenticated SMTP relay.
type SMTPSender struct {
	cfg     SMTPConfig
	limiter *rate.Limiter
	deliver func(ctx context.Context, msg *gomail.Msg) error
}

// NewSMTPSender validates cfg and returns a sender. No connection is opened until Send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port <= 0 || cfg.Username == "" || cfg.Password == "" {
		return nil, ErrNotConfigured
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	opts := []gomail.Option{
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTimeout(sendTimeout),
	}
	if cfg.Port == implicitTLSPort {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	opts = append(opts, gomail.WithPort(cfg.Port))

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: client: %w", err)
	}
	s := &SMTPSender{cfg: cfg, deliver: func(ctx context.Context, msg *gomail.Msg) error {
		return client.DialAndSendWithContext(ctx, msg)
	}}
	if cfg.SendsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.SendsPerMinute)), cfg.SendsPerMinute)
	}
	return s, nil
}

// Send waits for a pacing slot, then delivers m. Waiting honors ctx.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("mail: pacing: %w", err)
		}
	}
	msg, err := buildMsg(s.cfg.From, m)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, msg); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}

func buildMsg(from string, m Message) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	var err error
	if m.FromName != "" {
		err = msg.FromFormat(m.FromName, from)
	} else {
		err = msg.From(from)
	}
	if err != nil {
		return nil, fmt.Errorf("mail: from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("mail: to: %w", err)
	}
	if m.ReplyTo != "" {
		if err := msg.ReplyTo(m.ReplyTo); err != nil {
			return nil, fmt.Errorf("mail: reply-to: %w", err)
		}
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, m.HTML)
	}
	return msg, nil
}
