package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-resty/resty/v2"
	"github.com/stake-plus/multisig-relay/src/config"
)

const channelTimeout = 10 * time.Second

// DiscordChannel sends direct messages through a bot session. Handles are
// Discord user IDs.
type DiscordChannel struct {
	session *discordgo.Session
}

// NewDiscordChannel opens a bot session for token.
func NewDiscordChannel(token string) (*DiscordChannel, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordChannel{session: s}, nil
}

func (c *DiscordChannel) Name() string { return ChannelDiscord }

func (c *DiscordChannel) Send(ctx context.Context, handle string, msg Message) error {
	dm, err := c.session.UserChannelCreate(handle, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord dm channel: %w", err)
	}
	embed := &discordgo.MessageEmbed{
		Title:       msg.Subject,
		Description: WrapURLsNoEmbed(msg.Body),
		Color:       0x0099ff,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if msg.Link != "" {
		embed.Fields = []*discordgo.MessageEmbedField{{
			Name:  "Details",
			Value: fmt.Sprintf("[Open](%s)", msg.Link),
		}}
	}
	_, err = c.session.ChannelMessageSendEmbed(dm.ID, embed, discordgo.WithContext(ctx))
	return err
}

// Close closes the bot session.
func (c *DiscordChannel) Close() error {
	return c.session.Close()
}

var urlNoEmbedRegex = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

// WrapURLsNoEmbed wraps URLs in angle brackets so Discord does not unfurl them.
func WrapURLsNoEmbed(text string) string {
	return urlNoEmbedRegex.ReplaceAllStringFunc(text, func(u string) string {
		core := strings.TrimRight(u, ".,;:!?)")
		return "<" + core + ">" + u[len(core):]
	})
}

// TelegramChannel sends bot API messages. Handles are chat IDs.
type TelegramChannel struct {
	client *resty.Client
	token  string
}

// NewTelegramChannel returns a channel for the bot token. baseURL defaults to
// the public bot API.
func NewTelegramChannel(token, baseURL string) *TelegramChannel {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(channelTimeout).
		SetHeader("Content-Type", "application/json")
	return &TelegramChannel{client: client, token: token}
}

func (c *TelegramChannel) Name() string { return ChannelTelegram }

func (c *TelegramChannel) Send(ctx context.Context, handle string, msg Message) error {
	text := msg.Subject + "\n\n" + msg.Body
	if msg.Link != "" {
		text += "\n" + msg.Link
	}
	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id":                  handle,
			"text":                     text,
			"disable_web_page_preview": true,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/bot" + c.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode(), out.Description)
	}
	return nil
}

// SlackChannel posts to an incoming webhook. The handle is a Slack member ID
// mentioned in the message.
type SlackChannel struct {
	client  *resty.Client
	webhook string
}

func NewSlackChannel(webhook string) *SlackChannel {
	return &SlackChannel{client: resty.New().SetTimeout(channelTimeout), webhook: webhook}
}

func (c *SlackChannel) Name() string { return ChannelSlack }

func (c *SlackChannel) Send(ctx context.Context, handle string, msg Message) error {
	text := fmt.Sprintf("<@%s> *%s*\n%s", handle, msg.Subject, msg.Body)
	if msg.Link != "" {
		text += "\n<" + msg.Link + ">"
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		Post(c.webhook)
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// EmailChannel sends plain-text mail over SMTP. Handles are addresses.
type EmailChannel struct {
	cfg  config.SMTP
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailChannel(cfg config.SMTP) *EmailChannel {
	return &EmailChannel{cfg: cfg, send: smtp.SendMail}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Send(_ context.Context, handle string, msg Message) error {
	if !strings.Contains(handle, "@") {
		return fmt.Errorf("email: invalid recipient %q", handle)
	}
	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	addr := c.cfg.Host + ":" + strconv.Itoa(c.cfg.Port)
	return c.send(addr, auth, c.cfg.From, []string{handle}, buildMail(c.cfg.From, handle, msg))
}

func buildMail(from, to string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + strings.ReplaceAll(msg.Subject, "\n", " ") + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Body + "\r\n")
	if msg.Link != "" {
		b.WriteString("\r\n" + msg.Link + "\r\n")
	}
	return []byte(b.String())
}
