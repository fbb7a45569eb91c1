package onebot

import (
	"encoding/json"
	"testing"
)

func decodeEvent(t *testing.T, raw string) wireEvent {
	t.Helper()
	var ev wireEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return ev
}

func TestParseGroupMessage(t *testing.T) {
	raw := `{
		"post_type": "message",
		"message_type": "group",
		"self_id": 10001,
		"user_id": 20002,
		"group_id": 30003,
		"time": 1700000000,
		"raw_message": "大家好",
		"sender": {"nickname": "小明", "card": "群里的小明"}
	}`
	ev, ok := parseEvent(decodeEvent(t, raw))
	if !ok {
		t.Fatal("group message not parsed")
	}
	if ev.GroupID != "30003" || ev.UserID != "20002" || ev.SelfID != "10001" {
		t.Errorf("ids = %q %q %q", ev.GroupID, ev.UserID, ev.SelfID)
	}
	if ev.Nickname != "群里的小明" {
		t.Errorf("card should win over nickname, got %q", ev.Nickname)
	}
	if ev.Private {
		t.Error("group message flagged private")
	}
	if ev.At.Unix() != 1700000000 {
		t.Errorf("At = %v", ev.At)
	}
}

func TestParsePrivateMessage(t *testing.T) {
	raw := `{
		"post_type": "message",
		"message_type": "private",
		"self_id": 10001,
		"user_id": 20002,
		"raw_message": "在吗",
		"sender": {"nickname": "小明"}
	}`
	ev, ok := parseEvent(decodeEvent(t, raw))
	if !ok {
		t.Fatal("private message not parsed")
	}
	if !ev.Private || ev.GroupID != "" {
		t.Errorf("Private=%v GroupID=%q", ev.Private, ev.GroupID)
	}
}

func TestParseIgnoresNonMessageEvents(t *testing.T) {
	for _, raw := range []string{
		`{"post_type": "notice", "notice_type": "group_increase"}`,
		`{"post_type": "meta_event", "meta_event_type": "heartbeat"}`,
		`{"post_type": "message", "message_type": "guild"}`,
	} {
		if _, ok := parseEvent(decodeEvent(t, raw)); ok {
			t.Errorf("parsed non-chat event %s", raw)
		}
	}
}

func TestParseMentionsFromSegments(t *testing.T) {
	raw := `{
		"post_type": "message",
		"message_type": "group",
		"self_id": 10001,
		"user_id": 20002,
		"group_id": 30003,
		"raw_message": "[CQ:at,qq=10001] 在吗",
		"message": [
			{"type": "at", "data": {"qq": "10001"}},
			{"type": "text", "data": {"text": " 在吗"}}
		]
	}`
	ev, ok := parseEvent(decodeEvent(t, raw))
	if !ok {
		t.Fatal("not parsed")
	}
	if len(ev.Mentions) != 1 || ev.Mentions[0] != "10001" {
		t.Fatalf("Mentions = %v", ev.Mentions)
	}
}

func TestParseMentionsFromCQFallback(t *testing.T) {
	raw := `{
		"post_type": "message",
		"message_type": "group",
		"user_id": 20002,
		"group_id": 30003,
		"raw_message": "[CQ:at,qq=10001] 你怎么看 [CQ:at,qq=40004]"
	}`
	ev, _ := parseEvent(decodeEvent(t, raw))
	if len(ev.Mentions) != 2 || ev.Mentions[0] != "10001" || ev.Mentions[1] != "40004" {
		t.Fatalf("Mentions = %v", ev.Mentions)
	}
}

func TestParseMentionsSkipsAtAll(t *testing.T) {
	raw := `{
		"post_type": "message",
		"message_type": "group",
		"user_id": 20002,
		"group_id": 30003,
		"raw_message": "全员看过来",
		"message": [{"type": "at", "data": {"qq": "all"}}]
	}`
	ev, _ := parseEvent(decodeEvent(t, raw))
	if len(ev.Mentions) != 0 {
		t.Fatalf("@all should not count as a mention: %v", ev.Mentions)
	}
}

func TestSendGroupMsgRequest(t *testing.T) {
	req, err := sendGroupMsg("30003", "你好")
	if err != nil {
		t.Fatal(err)
	}
	if req.Action != "send_group_msg" {
		t.Errorf("Action = %q", req.Action)
	}
	if req.Params["group_id"] != int64(30003) || req.Params["message"] != "你好" {
		t.Errorf("Params = %v", req.Params)
	}
	if _, err := sendGroupMsg("not-a-number", "x"); err == nil {
		t.Error("bad group id accepted")
	}
}
