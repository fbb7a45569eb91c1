package onebot

import (
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"candybear/internal/channels"
)

// wireEvent is the subset of an OneBot v11 push event the bot reads.
// Numeric IDs arrive as JSON numbers; they are normalized to strings.
type wireEvent struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	SelfID      json.Number     `json:"self_id"`
	UserID      json.Number     `json:"user_id"`
	GroupID     json.Number     `json:"group_id"`
	RawMessage  string          `json:"raw_message"`
	Message     json.RawMessage `json:"message"`
	Sender      struct {
		Nickname string `json:"nickname"`
		Card     string `json:"card"`
	} `json:"sender"`
	Echo string          `json:"echo"`
	Data json.RawMessage `json:"data"`
	Time int64           `json:"time"`
}

// segment is one element of an array-format message.
type segment struct {
	Type string `json:"type"`
	Data struct {
		Text string `json:"text"`
		QQ   string `json:"qq"`
	} `json:"data"`
}

var cqAtRe = regexp.MustCompile(`\[CQ:at,qq=(\d+)\]`)

// parseEvent converts a push event into a channels.Event. ok is false for
// anything that is not a chat message.
func parseEvent(ev wireEvent) (channels.Event, bool) {
	if ev.PostType != "message" {
		return channels.Event{}, false
	}
	out := channels.Event{
		Channel:  "onebot",
		SelfID:   ev.SelfID.String(),
		UserID:   ev.UserID.String(),
		Text:     ev.RawMessage,
		Nickname: ev.Sender.Nickname,
	}
	if ev.Sender.Card != "" {
		out.Nickname = ev.Sender.Card
	}
	if ev.Time > 0 {
		out.At = time.Unix(ev.Time, 0)
	} else {
		out.At = time.Now()
	}
	switch ev.MessageType {
	case "group":
		out.GroupID = ev.GroupID.String()
	case "private":
		out.Private = true
	default:
		return channels.Event{}, false
	}
	out.Mentions = parseMentions(ev)
	return out, true
}

// parseMentions pulls @-mentions from the structured message when present,
// falling back to CQ codes in the raw text.
func parseMentions(ev wireEvent) []string {
	var mentions []string
	var segs []segment
	if len(ev.Message) > 0 && ev.Message[0] == '[' {
		if err := json.Unmarshal(ev.Message, &segs); err == nil {
			for _, s := range segs {
				if s.Type == "at" && s.Data.QQ != "" && s.Data.QQ != "all" {
					mentions = append(mentions, s.Data.QQ)
				}
			}
			return mentions
		}
	}
	for _, m := range cqAtRe.FindAllStringSubmatch(ev.RawMessage, -1) {
		mentions = append(mentions, m[1])
	}
	return mentions
}

// apiRequest is an echo-correlated OneBot API call.
type apiRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Echo   string         `json:"echo"`
}

func sendGroupMsg(groupID, text string) (apiRequest, error) {
	gid, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return apiRequest{}, err
	}
	return apiRequest{
		Action: "send_group_msg",
		Params: map[string]any{"group_id": gid, "message": text},
	}, nil
}

func sendPrivateMsg(userID, text string) (apiRequest, error) {
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return apiRequest{}, err
	}
	return apiRequest{
		Action: "send_private_msg",
		Params: map[string]any{"user_id": uid, "message": text},
	}, nil
}
