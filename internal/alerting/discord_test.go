package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testAlert(endsIn time.Duration) Alert {
	ends := throttleNow.Add(endsIn)
	change := throttleNow.Add(-5 * time.Minute)
	return Alert{
		Title:        "Vintage poster",
		DisplayName:  "Poster lot",
		URL:          "https://example.test/lot/1",
		Currency:     "EUR",
		Price:        price(1250),
		EndsAt:       &ends,
		LastChangeAt: &change,
		Now:          throttleNow,
	}
}

func TestWebhookSendSuccess(t *testing.T) {
	var got webhookPayload
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg-7"})
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, zerolog.Nop())
	id, err := n.Send(context.Background(), testAlert(2*time.Hour), true)
	if err != nil {
		t.Fatalf("Send 应成功: %v", err)
	}
	if id != "msg-7" {
		t.Fatalf("应返回 Discord 的消息 id, 实际 %q", id)
	}
	if query != "wait=true" {
		t.Fatalf("应携带 wait=true, 实际 %q", query)
	}
	if got.Content != "@everyone" {
		t.Fatalf("ping 时 content 应为 @everyone, 实际 %q", got.Content)
	}
	if got.Username != "Auction Tracker" {
		t.Fatalf("username 不正确: %q", got.Username)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Color != colorTracking {
		t.Fatalf("远离结束时间时应使用常规颜色: %+v", got.Embeds)
	}
}

func TestWebhookSendClosingColor(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg-8"})
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, zerolog.Nop())
	if _, err := n.Send(context.Background(), testAlert(20*time.Minute), false); err != nil {
		t.Fatalf("Send 应成功: %v", err)
	}
	if got.Embeds[0].Color != colorClosingSoon {
		t.Fatalf("30 分钟内应使用收尾颜色, 实际 %#x", got.Embeds[0].Color)
	}
	if got.Content != "" {
		t.Fatalf("非 ping 消息不应有 content, 实际 %q", got.Content)
	}
}

func TestWebhookSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, zerolog.Nop())
	if _, err := n.Send(context.Background(), testAlert(time.Hour), false); err == nil {
		t.Fatal("HTTP 400 应返回错误")
	}
}

func TestWebhookEdit(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, zerolog.Nop())
	if err := n.Edit(context.Background(), "msg-7", testAlert(time.Hour)); err != nil {
		t.Fatalf("Edit 应成功: %v", err)
	}
	if method != http.MethodPatch {
		t.Fatalf("应使用 PATCH, 实际 %s", method)
	}
	if !strings.HasSuffix(path, "/messages/msg-7") {
		t.Fatalf("路径应指向消息资源, 实际 %s", path)
	}
}

func TestWebhookEditRequiresMessageID(t *testing.T) {
	n := NewWebhookNotifier("https://example.test/webhook", time.Second, zerolog.Nop())
	if err := n.Edit(context.Background(), "", testAlert(time.Hour)); err == nil {
		t.Fatal("缺少消息 id 应报错")
	}
}

func TestFormatPriceDutchComma(t *testing.T) {
	a := testAlert(time.Hour)
	if got := formatPrice(a); got != "€ 1250,00" {
		t.Fatalf("价格格式不正确: %q", got)
	}
	a.Price = nil
	if got := formatPrice(a); got != "—" {
		t.Fatalf("缺失价格应显示占位符, 实际 %q", got)
	}
}
