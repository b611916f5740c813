package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thisisjab/fuxi/fault"
)

// Notice is the part of a Sentry issue alert shown on a chat card.
type Notice struct {
	Title    string `json:"title"`
	Datetime string `json:"datetime"`
	Env      string `json:"env"`
	URL      string `json:"url"`
	WebURL   string `json:"web_url"`
}

type sentryPayload struct {
	Data struct {
		Event *struct {
			Title    string  `json:"title"`
			Datetime string  `json:"datetime"`
			WebURL   string  `json:"web_url"`
			Tags     [][]any `json:"tags"`
		} `json:"event"`
	} `json:"data"`
}

// ParseSentryNotice extracts a notice from a Sentry webhook body. The
// environment is rendered as device_os_browser from the event tags.
func ParseSentryNotice(body []byte) (Notice, error) {
	var p sentryPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Notice{}, fault.New(fault.BadInputCode, "Body contains badly-formed JSON.").WithOriginal(err)
	}

	if p.Data.Event == nil {
		return Notice{}, fault.BadInput("data.event", "Field is required.")
	}

	ev := p.Data.Event
	tags := make(map[string]string, len(ev.Tags))
	for _, pair := range ev.Tags {
		if len(pair) != 2 {
			continue
		}
		key, ok := pair[0].(string)
		if !ok {
			continue
		}
		tags[key] = fmt.Sprint(pair[1])
	}

	return Notice{
		Title:    ev.Title,
		Datetime: ev.Datetime,
		Env:      strings.Join([]string{tags["device"], tags["os"], tags["browser"]}, "_"),
		URL:      tags["url"],
		WebURL:   ev.WebURL,
	}, nil
}

// CardBuilder renders a notice as a Feishu interactive card.
type CardBuilder interface {
	Build(n Notice) (any, error)
}

// DefaultCards renders ErrorNoticeCard.
type DefaultCards struct{}

func (DefaultCards) Build(n Notice) (any, error) {
	return ErrorNoticeCard(n), nil
}

func markdown(content string) map[string]any {
	return map[string]any{
		"tag":        "markdown",
		"content":    content,
		"text_align": "left",
		"text_size":  "normal",
	}
}

func singleColumn(content string, extra map[string]any) map[string]any {
	set := map[string]any{
		"tag":                "column_set",
		"horizontal_spacing": "8px",
		"horizontal_align":   "left",
		"columns": []any{
			map[string]any{
				"tag":              "column",
				"width":            "weighted",
				"elements":         []any{markdown(content)},
				"vertical_align":   "top",
				"vertical_spacing": "8px",
				"weight":           1,
			},
		},
		"margin": "16px 0px 0px 0px",
	}
	for k, v := range extra {
		set[k] = v
	}
	return set
}

// ErrorNoticeCard is the red alert card with a follow-up button linking to
// the Sentry issue.
func ErrorNoticeCard(n Notice) map[string]any {
	return map[string]any{
		"config":    map[string]any{"update_multi": true},
		"card_link": map[string]any{"url": ""},
		"i18n_elements": map[string]any{
			"zh_cn": []any{
				singleColumn("**🕐 时间：**"+n.Datetime, nil),
				markdown("**🔢环境：** " + n.Env),
				singleColumn("**🗳报错URL：**"+n.URL, map[string]any{"flex_mode": "stretch"}),
				markdown("**📝信息：**" + n.Title),
				map[string]any{
					"tag": "action",
					"actions": []any{
						map[string]any{
							"tag":   "button",
							"text":  map[string]any{"tag": "plain_text", "content": "跟进处理"},
							"type":  "primary",
							"width": "default",
							"size":  "small",
							"icon":  map[string]any{"tag": "standard_icon", "token": "team-code_outlined"},
							"behaviors": []any{
								map[string]any{
									"type":        "open_url",
									"default_url": n.WebURL,
									"pc_url":      "",
									"ios_url":     "",
									"android_url": "",
								},
							},
						},
					},
				},
			},
		},
		"i18n_header": map[string]any{
			"zh_cn": map[string]any{
				"title":    map[string]any{"tag": "plain_text", "content": fmt.Sprintf("收到报错信息: %s ", n.Title)},
				"subtitle": map[string]any{"tag": "plain_text", "content": ""},
				"template": "red",
				"ud_icon":  map[string]any{"tag": "standard_icon", "token": "warn-report_outlined"},
			},
		},
	}
}
