package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Config 指向一个以 --remote-debugging-port 启动的 Chrome 实例。
type Config struct {
	DebugURL string `yaml:"debug_url" json:"debug_url"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// Session 封装一个 DevTools 页面会话：建 tab、导航、执行 JS、关 tab。
// 所有能力都经由 Runtime.evaluate 表达，足以覆盖抓取所需的
// 点击/滚动/取文本操作，不引入完整协议绑定。
type Session struct {
	conn     *websocket.Conn
	debugURL string
	targetID string
	timeout  time.Duration

	mu     sync.Mutex
	nextID int64

	log *logrus.Entry
}

// NewSession 通过调试端点新建一个标签页并接入其 WebSocket 通道。
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	base := strings.TrimSuffix(cfg.DebugURL, "/")
	if base == "" {
		base = "http://127.0.0.1:9222"
	}
	timeout := 20 * time.Second
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}

	target, err := createTarget(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("create browser target: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.WebSocketDebuggerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial devtools socket: %w", err)
	}

	s := &Session{
		conn:     conn,
		debugURL: base,
		targetID: target.ID,
		timeout:  timeout,
		log:      logrus.WithField("component", "browser"),
	}

	if _, err := s.call(ctx, "Page.enable", nil); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("enable page domain: %w", err)
	}
	if _, err := s.call(ctx, "Runtime.enable", nil); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("enable runtime domain: %w", err)
	}

	return s, nil
}

// Navigate 跳转到指定 URL。页面加载的等待交给调用方按固定延时处理。
func (s *Session) Navigate(ctx context.Context, pageURL string) error {
	_, err := s.call(ctx, "Page.navigate", map[string]any{"url": pageURL})
	if err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	return nil
}

// Eval 在页面上下文执行表达式并把按值返回的结果解码到 out。
// out 为 nil 时忽略返回值。表达式抛出异常会作为错误返回。
func (s *Session) Eval(ctx context.Context, expr string, out any) error {
	raw, err := s.call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expr,
		"returnByValue": true,
		"awaitPromise":  true,
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	var resp struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode evaluate result: %w", err)
	}
	if resp.ExceptionDetails != nil {
		return fmt.Errorf("script exception: %s", resp.ExceptionDetails.Text)
	}
	if out == nil || len(resp.Result.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result.Value, out); err != nil {
		return fmt.Errorf("decode evaluate value: %w", err)
	}
	return nil
}

// Close 关闭标签页与底层连接。
func (s *Session) Close() error {
	if s.targetID != "" {
		req, err := http.NewRequest(http.MethodGet, s.debugURL+"/json/close/"+s.targetID, nil)
		if err == nil {
			if resp, err := http.DefaultClient.Do(req); err == nil {
				_ = resp.Body.Close()
			}
		}
	}
	return s.conn.Close()
}

// call 发送一条协议指令并等待同 id 的响应，跳过事件消息。
func (s *Session) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	req := map[string]any{"id": id, "method": method}
	if params != nil {
		req["params"] = params
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	_ = s.conn.SetReadDeadline(deadline)
	for {
		var msg struct {
			ID     int64           `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  *struct {
				Message string `json:"message"`
			} `json:"error"`
			Method string `json:"method"`
		}
		if err := s.conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("read %s response: %w", method, err)
		}
		if msg.ID != id {
			// 事件或旧响应，忽略。
			continue
		}
		if msg.Error != nil {
			return nil, fmt.Errorf("%s: %s", method, msg.Error.Message)
		}
		return msg.Result, nil
	}
}

type targetInfo struct {
	ID                   string `json:"id"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// createTarget 请求 /json/new 打开空白标签页。新版 Chrome 要求 PUT，
// 老版本只认 GET，失败时换方法重试一次。
func createTarget(ctx context.Context, base string) (targetInfo, error) {
	endpoint := base + "/json/new?" + url.QueryEscape("about:blank")
	for _, method := range []string{http.MethodPut, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return targetInfo{}, fmt.Errorf("new request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return targetInfo{}, fmt.Errorf("request debug endpoint: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return targetInfo{}, fmt.Errorf("read debug response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			continue
		}
		var t targetInfo
		if err := json.Unmarshal(body, &t); err != nil {
			return targetInfo{}, fmt.Errorf("decode target info: %w", err)
		}
		if t.WebSocketDebuggerURL == "" {
			return targetInfo{}, fmt.Errorf("debug endpoint returned no socket url")
		}
		return t, nil
	}
	return targetInfo{}, fmt.Errorf("debug endpoint rejected /json/new")
}
