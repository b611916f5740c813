package notify

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/pusher/pusher-http-go/v5"
)

// DefaultPusherTables are the channels notified when no allow-list is configured.
var DefaultPusherTables = []string{"FuxiKuangBiao"}

type PusherConfig struct {
	AppID         string   `yaml:"app_id"`
	Key           string   `yaml:"key"`
	Secret        string   `yaml:"secret"`
	Cluster       string   `yaml:"cluster"`
	EnabledTables []string `yaml:"enabled_tables"`
	QueueSize     int      `yaml:"queue_size"`
}

func (c PusherConfig) Validate() error {
	if c.AppID == "" || c.Key == "" || c.Secret == "" {
		return errors.New("pusher app_id, key and secret are required")
	}
	return nil
}

// Event is a row change broadcast on the channel named after its table.
type Event struct {
	Channel string
	Name    string
	Data    any
}

type trigger interface {
	Trigger(channel string, eventName string, data interface{}) error
}

// Pusher triggers events for allow-listed tables only.
type Pusher struct {
	client  trigger
	enabled []string
	logger  *slog.Logger
}

func NewPusher(logger *slog.Logger, cfg PusherConfig) (*Pusher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	enabled := cfg.EnabledTables
	if len(enabled) == 0 {
		enabled = DefaultPusherTables
	}

	return &Pusher{
		client: &pusher.Client{
			AppID:   cfg.AppID,
			Key:     cfg.Key,
			Secret:  cfg.Secret,
			Cluster: cfg.Cluster,
			Secure:  true,
		},
		enabled: enabled,
		logger:  logger,
	}, nil
}

// Enabled reports whether events on the given table are forwarded.
func (p *Pusher) Enabled(table string) bool {
	return slices.Contains(p.enabled, table)
}

func (p *Pusher) Send(e Event) error {
	if !p.Enabled(e.Channel) {
		p.logger.Debug("table is not in pusher allow-list, skipping", "channel", e.Channel, "event", e.Name)
		return nil
	}

	return p.client.Trigger(e.Channel, e.Name, e.Data)
}
